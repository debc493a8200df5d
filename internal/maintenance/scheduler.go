// Package maintenance decides when automatic backups run and makes sure
// only one run happens at a time.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
)

// Settings is the persisted schedule state.
type Settings interface {
	AutoBackupEnabled(ctx context.Context) (bool, error)
	AutoBackupInterval(ctx context.Context) (model.BackupInterval, error)
	LastAutoBackup(ctx context.Context) (time.Time, bool, error)
	SetLastAutoBackup(ctx context.Context, at time.Time) error
	SetAutoBackupEnabled(ctx context.Context, enabled bool) error
	SetAutoBackupInterval(ctx context.Context, interval model.BackupInterval) error
}

// Action performs backups.
type Action interface {
	CreateAuto(ctx context.Context) (string, error)
	CreateBackup(ctx context.Context) (string, error)
}

// Locker provides mutual exclusion for scheduled runs.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Outcome describes what a trigger did.
type Outcome int

// Trigger outcomes.
const (
	OutcomeDisabled Outcome = iota
	OutcomeNotDue
	OutcomeRan
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeNotDue:
		return "not due"
	case OutcomeRan:
		return "ran"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the outcome of one trigger. Path is set when a backup was written.
type Result struct {
	Path    string
	Outcome Outcome
}

// BackgroundResult is reported to the host when a background wake finishes.
type BackgroundResult int

// Background wake results.
const (
	NoData BackgroundResult = iota
	NewData
	Failed
)

func (r BackgroundResult) String() string {
	switch r {
	case NewData:
		return "new data"
	case NoData:
		return "no data"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("BackgroundResult(%d)", int(r))
	}
}

// Status summarizes the schedule for display.
type Status struct {
	LastRun  *time.Time
	NextDue  time.Time
	Interval model.BackupInterval
	Enabled  bool
	Due      bool
}

// Scheduler runs automatic backups when they are due.
type Scheduler struct {
	settings Settings
	action   Action
	locker   Locker
}

// NewScheduler creates a scheduler.
func NewScheduler(settings Settings, action Action, locker Locker) (*Scheduler, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}
	if action == nil {
		return nil, errors.New("backup action cannot be nil")
	}
	if locker == nil {
		return nil, errors.New("locker cannot be nil")
	}
	return &Scheduler{settings: settings, action: action, locker: locker}, nil
}

// MaybeTrigger runs the automatic backup if it is enabled and due at now.
// The check, the backup and the timestamp update all happen under the lock,
// so concurrent callers produce at most one backup per interval.
func (s *Scheduler) MaybeTrigger(ctx context.Context, now time.Time) (Result, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	defer unlock()

	enabled, err := s.settings.AutoBackupEnabled(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("failed to read auto backup setting: %w", err)
	}
	if !enabled {
		return Result{Outcome: OutcomeDisabled}, nil
	}

	due, err := s.isDue(ctx, now)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	if !due {
		return Result{Outcome: OutcomeNotDue}, nil
	}

	path, err := s.action.CreateAuto(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("automatic backup failed: %w", err)
	}

	if err := s.settings.SetLastAutoBackup(ctx, now); err != nil {
		return Result{Outcome: OutcomeRan, Path: path}, fmt.Errorf("backup written to %s but failed to record run: %w", path, err)
	}

	slog.Info("automatic backup completed", "path", path)
	return Result{Outcome: OutcomeRan, Path: path}, nil
}

func (s *Scheduler) isDue(ctx context.Context, now time.Time) (bool, error) {
	interval, err := s.settings.AutoBackupInterval(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read backup interval: %w", err)
	}
	last, ok, err := s.settings.LastAutoBackup(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read last backup time: %w", err)
	}
	return !ok || now.Sub(last) > interval.Duration(), nil
}

// Foreground is the app-start hook. Failures are logged, never returned.
func (s *Scheduler) Foreground(ctx context.Context, now time.Time) Result {
	res, err := s.MaybeTrigger(ctx, now)
	if err != nil {
		common.LogError(ctx, err, "foreground maintenance failed", common.Fields{
			"trigger": "foreground",
			"retry":   common.IsRetryable(err),
		})
		res.Outcome = OutcomeFailed
	}
	return res
}

// Background is the periodic wake hook. The run is bounded by budget and
// done is called exactly once with the result.
func (s *Scheduler) Background(ctx context.Context, now time.Time, budget time.Duration, done func(BackgroundResult)) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	result := Failed
	defer func() {
		if done != nil {
			done(result)
		}
	}()

	res, err := s.MaybeTrigger(ctx, now)
	if err != nil {
		common.LogError(ctx, err, "background maintenance failed", common.Fields{
			"trigger": "background",
			"budget":  budget.String(),
			"retry":   common.IsRetryable(err),
		})
		return
	}

	if res.Outcome == OutcomeRan {
		result = NewData
	} else {
		result = NoData
	}
}

// ManualBackup takes a user-requested backup. It does not move the
// automatic schedule and returns any failure to the caller.
func (s *Scheduler) ManualBackup(ctx context.Context) (string, error) {
	return s.action.CreateBackup(ctx)
}

// SetEnabled turns automatic backups on or off. It waits for any run in
// progress so the change never lands in the middle of a due check.
func (s *Scheduler) SetEnabled(ctx context.Context, enabled bool) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.settings.SetAutoBackupEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to save auto backup setting: %w", err)
	}
	common.LogInfo(ctx, "automatic backups updated", common.Fields{"enabled": enabled})
	return nil
}

// SetInterval changes how often automatic backups run.
func (s *Scheduler) SetInterval(ctx context.Context, interval model.BackupInterval) error {
	if !interval.IsValid() {
		return fmt.Errorf("%w: unsupported backup interval %s", common.ErrValidation, interval.Duration())
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.settings.SetAutoBackupInterval(ctx, interval); err != nil {
		return fmt.Errorf("failed to save backup interval: %w", err)
	}
	common.LogInfo(ctx, "automatic backup interval updated", common.Fields{"interval": interval.String()})
	return nil
}

// Status reports the schedule as of now.
func (s *Scheduler) Status(ctx context.Context, now time.Time) (*Status, error) {
	enabled, err := s.settings.AutoBackupEnabled(ctx)
	if err != nil {
		return nil, err
	}
	interval, err := s.settings.AutoBackupInterval(ctx)
	if err != nil {
		return nil, err
	}
	last, ok, err := s.settings.LastAutoBackup(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Enabled: enabled, Interval: interval, NextDue: now}
	if ok {
		status.LastRun = &last
		status.NextDue = last.Add(interval.Duration())
	}
	status.Due = enabled && (!ok || now.Sub(last) > interval.Duration())
	return status, nil
}
