package notify

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/maintenance"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/settings"
	"github.com/Veraticus/ledgerkeep/internal/storage"
	"github.com/Veraticus/ledgerkeep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowInstaller widens the gap between cancelling and installing.
type slowInstaller struct {
	Installer
	delay time.Duration
}

func (s *slowInstaller) CancelAll(ctx context.Context) error {
	time.Sleep(s.delay)
	return s.Installer.CancelAll(ctx)
}

// ledgerProcess is everything one CLI or daemon process holds.
type ledgerProcess struct {
	reminders *Reminders
	store     *Store
	prefs     *settings.Settings
}

// openProcess opens its own connection and lock on a shared ledger, the
// way a second process would.
func openProcess(t *testing.T, dbPath, lockPath string, now time.Time) *ledgerProcess {
	t.Helper()

	db, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	locker, err := maintenance.NewFileLocker(lockPath, 5*time.Millisecond)
	require.NoError(t, err)

	prefs := settings.New(db, time.UTC)
	store := NewStore(db, time.UTC, locker)
	installer := &slowInstaller{Installer: store, delay: 20 * time.Millisecond}
	reminders, err := NewReminders(installer, prefs, locker, func() time.Time { return now })
	require.NoError(t, err)

	return &ledgerProcess{reminders: reminders, store: store, prefs: prefs}
}

func TestScheduleDailyReminder_ConcurrentProcessesLeaveOneReminder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "reminders.lock")
	now := time.Date(2026, time.March, 14, 6, 0, 0, 0, time.UTC)

	cli := openProcess(t, db.Path, lockPath, now)
	daemon := openProcess(t, db.Path, lockPath, now)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, p := range []*ledgerProcess{cli, daemon} {
		wg.Add(1)
		go func(p *ledgerProcess, hour int) {
			defer wg.Done()
			_, err := p.reminders.ScheduleDailyReminder(ctx, model.TimeOfDay{Hour: hour})
			assert.NoError(t, err)
		}(p, 8+i)
	}
	wg.Wait()

	pending, err := cli.store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// The survivor is whichever schedule ran last, and it matches the saved time.
	tod, ok, err := cli.prefs.ReminderTime(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tod, model.TimeOfDayOf(pending[0].FireAt.In(time.UTC)))
}

func TestSetEnabled_ConcurrentWithResync(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "reminders.lock")
	now := time.Date(2026, time.March, 14, 6, 0, 0, 0, time.UTC)

	cli := openProcess(t, db.Path, lockPath, now)
	daemon := openProcess(t, db.Path, lockPath, now)
	ctx := context.Background()

	require.NoError(t, cli.reminders.SetEnabled(ctx, true))
	require.NoError(t, cli.reminders.CancelAllNotifications(ctx))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := daemon.reminders.Resync(ctx)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, cli.reminders.SetEnabled(ctx, true))
	}()
	wg.Wait()

	pending, err := cli.store.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestFireDue_CancelDuringDeliveryStaysCancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "reminders.lock")
	now := time.Date(2026, time.March, 14, 8, 0, 0, 0, time.UTC)

	daemon := openProcess(t, db.Path, lockPath, now)
	cli := openProcess(t, db.Path, lockPath, now)
	ctx := context.Background()

	require.NoError(t, cli.reminders.SetEnabled(ctx, true))

	fireAt := time.Date(2026, time.March, 14, 21, 0, 0, 0, time.UTC)
	fired, err := daemon.store.FireDue(ctx, fireAt.Add(5*time.Minute), func(Trigger) error {
		return cli.reminders.SetEnabled(ctx, false)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	enabled, err := cli.prefs.NotificationEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	pending, err := daemon.store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFireDue_FailedDeliveryAfterCancelIsNotRestored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "reminders.lock")
	now := time.Date(2026, time.March, 14, 21, 5, 0, 0, time.UTC)

	daemon := openProcess(t, db.Path, lockPath, now)
	cli := openProcess(t, db.Path, lockPath, now)
	ctx := context.Background()

	require.NoError(t, daemon.store.Install(ctx, Trigger{ID: "once", FireAt: now.Add(-time.Minute)}))

	_, err := daemon.store.FireDue(ctx, now, func(Trigger) error {
		require.NoError(t, cli.reminders.CancelAllNotifications(ctx))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	pending, err := daemon.store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFireDue_ConcurrentDaemonsDeliverOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	lockPath := filepath.Join(t.TempDir(), "reminders.lock")
	now := time.Date(2026, time.March, 14, 21, 5, 0, 0, time.UTC)

	first := openProcess(t, db.Path, lockPath, now)
	second := openProcess(t, db.Path, lockPath, now)
	ctx := context.Background()

	require.NoError(t, first.store.Install(ctx, Trigger{
		ID:     "daily",
		FireAt: time.Date(2026, time.March, 14, 21, 0, 0, 0, time.UTC),
		Repeat: RepeatDaily,
	}))

	var delivered atomic.Int32
	deliver := func(Trigger) error {
		delivered.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for _, p := range []*ledgerProcess{first, second} {
		wg.Add(1)
		go func(p *ledgerProcess) {
			defer wg.Done()
			_, err := p.store.FireDue(ctx, now, deliver)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())

	pending, err := first.store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, time.Date(2026, time.March, 15, 21, 0, 0, 0, time.UTC).Equal(pending[0].FireAt))
}
