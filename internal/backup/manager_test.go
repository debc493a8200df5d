package backup

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct {
	err error
}

func (f *failingSource) Snapshot(_ context.Context) (*model.Snapshot, error) {
	return nil, f.err
}

func (f *failingSource) RestoreSnapshot(_ context.Context, _ *model.Snapshot, _ func(done, total int)) error {
	return f.err
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}
}

func setupManager(t *testing.T, opts ...Option) (*Manager, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	opts = append([]Option{WithClock(steppingClock(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)))}, opts...)
	manager, err := NewManager(db.Storage, filepath.Join(t.TempDir(), "backups"), opts...)
	require.NoError(t, err)
	return manager, db
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, t.TempDir())
	require.Error(t, err)

	_, err = NewManager(&failingSource{}, "")
	require.Error(t, err)
}

func TestCreateBackup(t *testing.T) {
	manager, db := setupManager(t)
	ctx := context.Background()

	db.MustTransaction(testutil.Entry{Amount: "42.50", Title: "Lunch"})

	path, err := manager.CreateBackup(ctx)
	require.NoError(t, err)

	assert.Equal(t, manager.Dir(), filepath.Dir(path))
	assert.Equal(t, "backup-20260314-093000.000.json", filepath.Base(path))
	assertNoTempFiles(t, manager.Dir())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, model.SnapshotFormat, snap.Format)
	assert.Equal(t, model.SnapshotVersion, snap.Version)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "42.5", snap.Transactions[0].Amount)
	assert.Equal(t, "Lunch", snap.Transactions[0].Title)
}

func TestCreate_CollisionGetsSuffix(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixed := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	manager, err := NewManager(db.Storage, t.TempDir(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	first, err := manager.CreateBackup(context.Background())
	require.NoError(t, err)
	second, err := manager.CreateBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backup-20260314-093000.000.json", filepath.Base(first))
	assert.Equal(t, "backup-20260314-093000.000-2.json", filepath.Base(second))
}

func TestCreate_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshot failure", func(t *testing.T) {
		dir := t.TempDir()
		manager, err := NewManager(&failingSource{err: errors.New("disk gone")}, dir)
		require.NoError(t, err)

		_, err = manager.CreateBackup(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrBackupIO)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("directory removed", func(t *testing.T) {
		manager, _ := setupManager(t)
		require.NoError(t, os.RemoveAll(manager.Dir()))

		_, err := manager.CreateAuto(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrBackupIO)

		var ioErr *common.BackupIOError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "create temp file", ioErr.Op)

		_, statErr := os.Stat(manager.Dir())
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestList_NewestFirst(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	manual, err := manager.CreateBackup(ctx)
	require.NoError(t, err)
	auto, err := manager.CreateAuto(ctx)
	require.NoError(t, err)

	// Files that are not backups are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(manager.Dir(), "notes.txt"), []byte("hi"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(manager.Dir(), "backup-broken.json"), []byte("{"), 0600))

	backups, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)

	assert.Equal(t, filepath.Base(auto), backups[0].Name)
	assert.Equal(t, KindAuto, backups[0].Kind)
	assert.Equal(t, filepath.Base(manual), backups[1].Name)
	assert.Equal(t, KindManual, backups[1].Kind)
	assert.Equal(t, 1, backups[0].Accounts)
	assert.Equal(t, 2, backups[0].Categories)
}

func TestGetAndDelete(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	path, err := manager.CreateBackup(ctx)
	require.NoError(t, err)
	name := filepath.Base(path)

	info, err := manager.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Positive(t, info.Size)

	require.NoError(t, manager.Delete(ctx, name))

	_, err = manager.Get(ctx, name)
	assert.ErrorIs(t, err, ErrBackupNotFound)

	err = manager.Delete(ctx, name)
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestInvalidNames(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	for _, name := range []string{"", "../backup-x.json", "sub/backup-x.json", "random.json", `backup\x.json`} {
		t.Run(name, func(t *testing.T) {
			_, err := manager.Get(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName)
			assert.ErrorIs(t, manager.Delete(ctx, name), ErrInvalidName)
			assert.ErrorIs(t, manager.Restore(ctx, name, nil), ErrInvalidName)
		})
	}
}

func TestRestore(t *testing.T) {
	manager, db := setupManager(t)
	ctx := context.Background()

	bank := db.MustAccount("Bank", "100")
	db.MustTransaction(testutil.Entry{Amount: "30", AccountID: bank.ID})

	path, err := manager.CreateBackup(ctx)
	require.NoError(t, err)

	db.MustAccount("Savings", "0")
	db.MustTransaction(testutil.Entry{Amount: "5"})

	var calls, lastDone, lastTotal int
	err = manager.Restore(ctx, filepath.Base(path), func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	accounts, err := db.Storage.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	balance, err := db.Storage.GetAccountBalance(ctx, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, "70", balance.Balance.String())

	assert.Positive(t, calls)
	assert.Equal(t, lastTotal, lastDone)

	backups, err := manager.List(ctx)
	require.NoError(t, err)
	kinds := make([]Kind, 0, len(backups))
	for _, b := range backups {
		kinds = append(kinds, b.Kind)
	}
	assert.Contains(t, kinds, KindPreRestore)
}

func TestRestore_RejectsForeignFiles(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"backup-garbage.json", "not json"},
		{"backup-other.json", `{"format":"something-else","version":1}`},
		{"backup-future.json", `{"format":"ledgerkeep-backup","version":99}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(manager.Dir(), tt.name), []byte(tt.content), 0600))
			err := manager.Restore(ctx, tt.name, nil)
			assert.ErrorIs(t, err, ErrUnknownFormat)
		})
	}

	// Nothing was restored, so no safety backup was needed.
	backups, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestCreateAuto_Retention(t *testing.T) {
	manager, _ := setupManager(t, WithKeepAuto(2))
	ctx := context.Background()

	manual, err := manager.CreateBackup(ctx)
	require.NoError(t, err)

	var autos []string
	for i := 0; i < 4; i++ {
		path, err := manager.CreateAuto(ctx)
		require.NoError(t, err)
		autos = append(autos, filepath.Base(path))
	}

	backups, err := manager.List(ctx)
	require.NoError(t, err)

	var names []string
	for _, b := range backups {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{autos[3], autos[2], filepath.Base(manual)}, names)
}
