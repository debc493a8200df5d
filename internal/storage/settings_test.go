package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, ok, err := store.GetSetting(ctx, "autoBackupEnabled")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, "autoBackupEnabled", "true"))
	require.NoError(t, store.SetSetting(ctx, "autoBackupEnabled", "false"))

	value, ok, err := store.GetSetting(ctx, "autoBackupEnabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", value)

	require.NoError(t, store.SetSetting(ctx, "notificationReminderTime", "1700000000000"))
	all, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"autoBackupEnabled":        "false",
		"notificationReminderTime": "1700000000000",
	}, all)

	require.NoError(t, store.DeleteSetting(ctx, "autoBackupEnabled"))
	require.NoError(t, store.DeleteSetting(ctx, "autoBackupEnabled"))
	_, ok, err = store.GetSetting(ctx, "autoBackupEnabled")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.GetSetting(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyString)
}
