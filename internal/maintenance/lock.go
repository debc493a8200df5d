package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockBusy is returned when the lock could not be taken before the
// context ended.
var ErrLockBusy = errors.New("lock is held by another run")

// DefaultLockRetry is how often a contended lock file is polled.
const DefaultLockRetry = 100 * time.Millisecond

// FileLocker serializes maintenance runs, or reminder changes, within this
// process and across every process sharing the same lock file.
type FileLocker struct {
	sem   chan struct{}
	file  *flock.Flock
	retry time.Duration
}

// NewFileLocker creates a locker backed by the file at path. The parent
// directory is created if needed.
func NewFileLocker(path string, retry time.Duration) (*FileLocker, error) {
	if path == "" {
		return nil, errors.New("lock path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	if retry <= 0 {
		retry = DefaultLockRetry
	}

	return &FileLocker{
		sem:   make(chan struct{}, 1),
		file:  flock.New(path),
		retry: retry,
	}, nil
}

// Path returns the lock file path.
func (l *FileLocker) Path() string {
	return l.file.Path()
}

// Lock blocks until both the in-process and the file lock are held, or ctx
// ends. The returned func releases both.
func (l *FileLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrLockBusy, ctx.Err())
	}

	locked, err := l.file.TryLockContext(ctx, l.retry)
	if err != nil {
		<-l.sem
		return nil, fmt.Errorf("%w: %w", ErrLockBusy, err)
	}
	if !locked {
		<-l.sem
		return nil, ErrLockBusy
	}

	return func() {
		if err := l.file.Unlock(); err != nil {
			slog.Warn("failed to release lock", "path", l.file.Path(), "error", err)
		}
		<-l.sem
	}, nil
}
