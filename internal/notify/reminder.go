// Package notify schedules the daily "log your expenses" reminder.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/google/uuid"
)

// Reminder content.
const (
	ReminderTitle   = "Daily Reminder"
	ReminderBody    = "Don't forget to log your expenses today!"
	ReminderChannel = "unified-channel"
)

// Repeat is how a trigger recurs after firing.
type Repeat string

// Repeat modes.
const (
	RepeatNone  Repeat = ""
	RepeatDaily Repeat = "daily"
)

// Trigger is one scheduled notification.
type Trigger struct {
	FireAt  time.Time `json:"fire_at"`
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Channel string    `json:"channel"`
	Repeat  Repeat    `json:"repeat,omitempty"`
}

// Installer is the platform scheduler that owns pending triggers.
type Installer interface {
	Install(ctx context.Context, trigger Trigger) error
	CancelAll(ctx context.Context) error
	Pending(ctx context.Context) ([]Trigger, error)
}

// Preferences persists the reminder configuration.
type Preferences interface {
	NotificationEnabled(ctx context.Context) (bool, error)
	SetNotificationEnabled(ctx context.Context, enabled bool) error
	ReminderTime(ctx context.Context) (model.TimeOfDay, bool, error)
	SetReminderTime(ctx context.Context, tod model.TimeOfDay) error
}

// NextFireTime returns tod today if that is still strictly after now, and
// tod tomorrow otherwise. The result is in now's location.
func NextFireTime(tod model.TimeOfDay, now time.Time) time.Time {
	candidate := tod.On(now)
	if !candidate.After(now) {
		candidate = tod.On(now.AddDate(0, 0, 1))
	}
	return candidate
}

// Locker serializes changes to the pending reminders. The CLI and the
// daemon are separate processes, so hosts pass a file lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// localLocker only serializes callers within one process.
type localLocker chan struct{}

func newLocalLocker() localLocker {
	return make(localLocker, 1)
}

func (l localLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reminders manages the single daily reminder.
type Reminders struct {
	installer Installer
	prefs     Preferences
	locker    Locker
	now       func() time.Time
}

// NewReminders creates a reminder manager. now defaults to time.Now. A nil
// locker only guards against callers in this process.
func NewReminders(installer Installer, prefs Preferences, locker Locker, now func() time.Time) (*Reminders, error) {
	if installer == nil {
		return nil, errors.New("installer cannot be nil")
	}
	if prefs == nil {
		return nil, errors.New("preferences cannot be nil")
	}
	if locker == nil {
		locker = newLocalLocker()
	}
	if now == nil {
		now = time.Now
	}
	return &Reminders{installer: installer, prefs: prefs, locker: locker, now: now}, nil
}

// ScheduleDailyReminder replaces any pending reminder with one that fires
// daily at tod, and remembers tod.
func (r *Reminders) ScheduleDailyReminder(ctx context.Context, tod model.TimeOfDay) (*Trigger, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	return r.schedule(ctx, tod)
}

// schedule expects the lock to be held.
func (r *Reminders) schedule(ctx context.Context, tod model.TimeOfDay) (*Trigger, error) {
	if err := r.installer.CancelAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to cancel pending reminders: %w", err)
	}

	trigger := Trigger{
		ID:      uuid.NewString(),
		Title:   ReminderTitle,
		Body:    ReminderBody,
		Channel: ReminderChannel,
		FireAt:  NextFireTime(tod, r.now()),
		Repeat:  RepeatDaily,
	}
	if err := r.installer.Install(ctx, trigger); err != nil {
		return nil, fmt.Errorf("failed to install reminder: %w", err)
	}

	if err := r.prefs.SetReminderTime(ctx, tod); err != nil {
		return nil, fmt.Errorf("failed to save reminder time: %w", err)
	}

	slog.Info("scheduled daily reminder", "time", tod.String(), "next", trigger.FireAt)
	return &trigger, nil
}

// CancelAllNotifications removes every pending reminder. Calling it with
// nothing pending is not an error.
func (r *Reminders) CancelAllNotifications(ctx context.Context) error {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	return r.cancel(ctx)
}

func (r *Reminders) cancel(ctx context.Context) error {
	if err := r.installer.CancelAll(ctx); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}

// SetEnabled turns the reminder on or off. Turning it on schedules it at
// the saved time, or at the default time if none was saved.
func (r *Reminders) SetEnabled(ctx context.Context, enabled bool) error {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	if err := r.prefs.SetNotificationEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to save notification setting: %w", err)
	}
	if !enabled {
		return r.cancel(ctx)
	}

	tod, err := r.reminderTime(ctx)
	if err != nil {
		return err
	}
	_, err = r.schedule(ctx, tod)
	return err
}

// Resync reinstalls the reminder at startup if it is enabled but the
// scheduler has nothing pending. It reports whether it installed one.
func (r *Reminders) Resync(ctx context.Context) (bool, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to lock reminders: %w", err)
	}
	defer unlock()

	enabled, err := r.prefs.NotificationEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read notification setting: %w", err)
	}
	if !enabled {
		return false, nil
	}

	pending, err := r.installer.Pending(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	if len(pending) > 0 {
		return false, nil
	}

	tod, err := r.reminderTime(ctx)
	if err != nil {
		return false, err
	}
	if _, err := r.schedule(ctx, tod); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reminders) reminderTime(ctx context.Context) (model.TimeOfDay, error) {
	tod, ok, err := r.prefs.ReminderTime(ctx)
	if err != nil {
		return model.TimeOfDay{}, fmt.Errorf("failed to read reminder time: %w", err)
	}
	if !ok {
		return model.DefaultReminderTime, nil
	}
	return tod, nil
}
