package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InstallReplacesSameID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db.Storage, time.UTC, nil)
	ctx := context.Background()

	first := Trigger{ID: "a", Title: "one", FireAt: time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Install(ctx, first))
	require.NoError(t, store.Install(ctx, Trigger{ID: "b", Title: "two"}))

	first.Title = "updated"
	require.NoError(t, store.Install(ctx, first))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "updated", pending[1].Title)
}

func TestStore_FireDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db.Storage, time.UTC, nil)
	ctx := context.Background()

	now := time.Date(2026, time.March, 14, 21, 5, 0, 0, time.UTC)
	require.NoError(t, store.Install(ctx, Trigger{
		ID:     "daily",
		Title:  ReminderTitle,
		FireAt: time.Date(2026, time.March, 12, 21, 0, 0, 0, time.UTC),
		Repeat: RepeatDaily,
	}))
	require.NoError(t, store.Install(ctx, Trigger{
		ID:     "once",
		FireAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.Install(ctx, Trigger{
		ID:     "later",
		FireAt: now.Add(time.Hour),
	}))

	var delivered []string
	fired, err := store.FireDue(ctx, now, func(tr Trigger) error {
		delivered = append(delivered, tr.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []string{"daily", "once"}, delivered)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "daily", pending[0].ID)
	assert.True(t, time.Date(2026, time.March, 15, 21, 0, 0, 0, time.UTC).Equal(pending[0].FireAt))
	assert.Equal(t, "later", pending[1].ID)

	// Nothing else is due until tomorrow evening.
	fired, err = store.FireDue(ctx, now.Add(30*time.Minute), func(Trigger) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestStore_FireDueKeepsFailedDeliveries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewStore(db.Storage, time.UTC, nil)
	ctx := context.Background()

	now := time.Date(2026, time.March, 14, 21, 5, 0, 0, time.UTC)
	require.NoError(t, store.Install(ctx, Trigger{ID: "once", FireAt: now.Add(-time.Minute)}))

	boom := errors.New("no display")
	fired, err := store.FireDue(ctx, now, func(Trigger) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, fired)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_CorruptState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, db.Storage.SetSetting(context.Background(), "notificationTriggers", "{not json"))

	store := NewStore(db.Storage, time.UTC, nil)
	_, err := store.Pending(context.Background())
	assert.Error(t, err)

	// Cancelling clears the bad state.
	require.NoError(t, store.CancelAll(context.Background()))
	pending, err := store.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
