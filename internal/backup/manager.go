// Package backup writes and restores portable ledger snapshots.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
)

// Kind says why a backup was taken.
type Kind string

// Backup kinds. The kind is also the filename prefix.
const (
	KindManual     Kind = "backup"
	KindAuto       Kind = "auto-backup"
	KindPreRestore Kind = "pre-restore"
)

const (
	fileExt         = ".json"
	timestampLayout = "20060102-150405.000"
	defaultKeepAuto = 5
	maxNameAttempts = 100
	tempFilePattern = ".ledger-backup-*.tmp"
	backupFileMode  = 0600
)

// Common errors.
var (
	ErrBackupNotFound = errors.New("backup not found")
	ErrInvalidName    = errors.New("invalid backup name")
	ErrUnknownFormat  = errors.New("not a ledger backup")
)

// Source captures and replaces the whole ledger.
type Source interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	RestoreSnapshot(ctx context.Context, snapshot *model.Snapshot, progress func(done, total int)) error
}

// Info describes a backup file for listing.
type Info struct {
	CreatedAt    time.Time
	Name         string
	Path         string
	Kind         Kind
	Size         int64
	Accounts     int
	Categories   int
	Transactions int
}

// Manager handles backup files in a single directory.
type Manager struct {
	source   Source
	now      func() time.Time
	dir      string
	keepAuto int
	mu       sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeepAuto sets how many automatic backups are retained.
func WithKeepAuto(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keepAuto = n
		}
	}
}

// WithClock overrides the time source used for filenames.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a backup manager writing into dir.
func NewManager(source Source, dir string, opts ...Option) (*Manager, error) {
	if source == nil {
		return nil, errors.New("backup source cannot be nil")
	}
	if dir == "" {
		return nil, errors.New("backup directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, common.NewBackupIOError("create directory", dir, err)
	}

	m := &Manager{
		source:   source,
		dir:      dir,
		keepAuto: defaultKeepAuto,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// CreateBackup takes a user-initiated backup and returns its path.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	info, err := m.Create(ctx, KindManual)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// CreateAuto takes a scheduled backup, prunes old automatic backups and
// returns the new file's path.
func (m *Manager) CreateAuto(ctx context.Context) (string, error) {
	info, err := m.Create(ctx, KindAuto)
	if err != nil {
		return "", err
	}

	if err := m.pruneAuto(ctx); err != nil {
		slog.Warn("failed to clean up old automatic backups", "error", err)
	}
	return info.Path, nil
}

// Create captures one atomic snapshot and writes it to a new file. The file
// only appears at its final path once fully written.
func (m *Manager) Create(ctx context.Context, kind Kind) (*Info, error) {
	snap, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, common.NewBackupIOError("snapshot", "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	createdAt := m.now()
	snap.CreatedAt = createdAt.UTC()

	path, err := m.write(snap, kind, createdAt)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, common.NewBackupIOError("stat", path, err)
	}

	slog.Info("created backup",
		"path", path,
		"kind", kind,
		"transactions", len(snap.Transactions),
		"size", info.Size())

	return &Info{
		CreatedAt:    snap.CreatedAt,
		Name:         filepath.Base(path),
		Path:         path,
		Kind:         kind,
		Size:         info.Size(),
		Accounts:     len(snap.Accounts),
		Categories:   len(snap.Categories),
		Transactions: len(snap.Transactions),
	}, nil
}

// write serializes snap into a temp file in the backup directory and
// renames it into place. Nothing is left behind on failure.
func (m *Manager) write(snap *model.Snapshot, kind Kind, createdAt time.Time) (string, error) {
	tmp, err := os.CreateTemp(m.dir, tempFilePattern)
	if err != nil {
		return "", common.NewBackupIOError("create temp file", m.dir, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Error("failed to remove temporary backup file", "path", tmpPath, "error", rmErr)
		}
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", common.NewBackupIOError("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", common.NewBackupIOError("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", common.NewBackupIOError("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, backupFileMode); err != nil {
		cleanup()
		return "", common.NewBackupIOError("chmod", tmpPath, err)
	}

	path, err := m.freePath(kind, createdAt)
	if err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", common.NewBackupIOError("rename", path, err)
	}
	return path, nil
}

// freePath returns a timestamped path that does not exist yet.
func (m *Manager) freePath(kind Kind, createdAt time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s", kind, createdAt.UTC().Format(timestampLayout))
	for i := 0; i < maxNameAttempts; i++ {
		name := base + fileExt
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", base, i+1, fileExt)
		}
		path := filepath.Join(m.dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", common.NewBackupIOError("stat", path, err)
		}
	}
	return "", common.NewBackupIOError("name", base, errors.New("too many backups with the same timestamp"))
}

// List returns all backups, newest first. Unreadable files are skipped.
func (m *Manager) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, common.NewBackupIOError("read directory", m.dir, err)
	}

	backups := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}

		info, err := m.inspect(entry.Name())
		if err != nil {
			slog.Debug("skipping unreadable backup", "name", entry.Name(), "error", err)
			continue
		}
		backups = append(backups, *info)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Get returns information about a single backup.
func (m *Manager) Get(_ context.Context, name string) (*Info, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return m.inspect(name)
}

// Delete removes a backup file.
func (m *Manager) Delete(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	path := filepath.Join(m.dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return common.NewBackupIOError("remove", path, err)
	}

	slog.Info("deleted backup", "name", name)
	return nil
}

// Restore replaces the ledger with the contents of a backup. A pre-restore
// backup of the current state is taken first.
func (m *Manager) Restore(ctx context.Context, name string, progress func(done, total int)) error {
	if err := validateName(name); err != nil {
		return err
	}

	snap, err := m.load(name)
	if err != nil {
		return err
	}

	safety, err := m.Create(ctx, KindPreRestore)
	if err != nil {
		return fmt.Errorf("failed to back up current ledger before restore: %w", err)
	}

	if err := m.source.RestoreSnapshot(ctx, snap, progress); err != nil {
		return fmt.Errorf("failed to restore %s (current state kept in %s): %w", name, safety.Name, err)
	}

	slog.Info("restored backup", "name", name, "safety_backup", safety.Name)
	return nil
}

func (m *Manager) load(name string) (*model.Snapshot, error) {
	path := filepath.Join(m.dir, name)
	// #nosec G304 - name is validated to contain no path separators
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return nil, common.NewBackupIOError("read", path, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownFormat, name, err)
	}
	if snap.Format != model.SnapshotFormat {
		return nil, fmt.Errorf("%w: %s has format %q", ErrUnknownFormat, name, snap.Format)
	}
	if snap.Version < 1 || snap.Version > model.SnapshotVersion {
		return nil, fmt.Errorf("%w: %s has unsupported version %d", ErrUnknownFormat, name, snap.Version)
	}
	return &snap, nil
}

func (m *Manager) inspect(name string) (*Info, error) {
	snap, err := m.load(name)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(m.dir, name)
	stat, err := os.Stat(path)
	if err != nil {
		return nil, common.NewBackupIOError("stat", path, err)
	}

	return &Info{
		CreatedAt:    snap.CreatedAt,
		Name:         name,
		Path:         path,
		Kind:         kindOf(name),
		Size:         stat.Size(),
		Accounts:     len(snap.Accounts),
		Categories:   len(snap.Categories),
		Transactions: len(snap.Transactions),
	}, nil
}

func (m *Manager) pruneAuto(ctx context.Context) error {
	backups, err := m.List(ctx)
	if err != nil {
		return err
	}

	kept := 0
	for _, b := range backups {
		if b.Kind != KindAuto {
			continue
		}
		kept++
		if kept > m.keepAuto {
			if err := m.Delete(ctx, b.Name); err != nil {
				slog.Debug("failed to delete old automatic backup", "name", b.Name, "error", err)
			}
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !isBackupName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func isBackupName(name string) bool {
	if !strings.HasSuffix(name, fileExt) {
		return false
	}
	return kindOf(name) != ""
}

func kindOf(name string) Kind {
	for _, kind := range []Kind{KindAuto, KindPreRestore, KindManual} {
		if strings.HasPrefix(name, string(kind)+"-") {
			return kind
		}
	}
	return ""
}
