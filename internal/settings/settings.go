// Package settings exposes typed accessors over the persisted key/value
// settings. Values are stored in the same shapes the ledger has always
// used: booleans as "true"/"false" and instants as Unix milliseconds.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
)

// Settings reads and writes user preferences and scheduler bookkeeping.
type Settings struct {
	store service.SettingsStore
	loc   *time.Location
}

// New wraps a settings store. Reminder times are interpreted in loc, or in
// the local time zone when loc is nil.
func New(store service.SettingsStore, loc *time.Location) *Settings {
	if loc == nil {
		loc = time.Local
	}
	return &Settings{store: store, loc: loc}
}

// AutoBackupEnabled reports whether automatic backups are on. Off by default.
func (s *Settings) AutoBackupEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, model.SettingAutoBackupEnabled, false)
}

// SetAutoBackupEnabled turns automatic backups on or off.
func (s *Settings) SetAutoBackupEnabled(ctx context.Context, enabled bool) error {
	return s.store.SetSetting(ctx, model.SettingAutoBackupEnabled, strconv.FormatBool(enabled))
}

// AutoBackupInterval returns the configured frequency, or the default when
// none is stored or the stored value is not a supported interval.
func (s *Settings) AutoBackupInterval(ctx context.Context) (model.BackupInterval, error) {
	raw, ok, err := s.store.GetSetting(ctx, model.SettingAutoBackupInterval)
	if err != nil {
		return 0, err
	}
	if !ok {
		return model.DefaultBackupInterval, nil
	}

	interval, err := model.ParseBackupInterval(raw)
	if err != nil {
		common.LogWarn(ctx, "ignoring unsupported backup interval", common.Fields{"value": raw})
		return model.DefaultBackupInterval, nil
	}
	return interval, nil
}

// SetAutoBackupInterval persists the backup frequency.
func (s *Settings) SetAutoBackupInterval(ctx context.Context, interval model.BackupInterval) error {
	if !interval.IsValid() {
		return fmt.Errorf("unsupported backup interval %s", interval.Duration())
	}
	return s.store.SetSetting(ctx, model.SettingAutoBackupInterval, strconv.FormatInt(interval.Millis(), 10))
}

// LastAutoBackup returns when the scheduler last completed a backup. ok is
// false if it never has.
func (s *Settings) LastAutoBackup(ctx context.Context) (last time.Time, ok bool, err error) {
	return s.getTime(ctx, model.SettingLastAutoBackup)
}

// SetLastAutoBackup records a completed scheduled backup.
func (s *Settings) SetLastAutoBackup(ctx context.Context, at time.Time) error {
	return s.store.SetSetting(ctx, model.SettingLastAutoBackup, strconv.FormatInt(at.UnixMilli(), 10))
}

// NotificationEnabled reports whether the daily reminder is on. Off by default.
func (s *Settings) NotificationEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, model.SettingNotificationEnabled, false)
}

// SetNotificationEnabled turns the daily reminder on or off.
func (s *Settings) SetNotificationEnabled(ctx context.Context, enabled bool) error {
	return s.store.SetSetting(ctx, model.SettingNotificationEnabled, strconv.FormatBool(enabled))
}

// ReminderTime returns the stored reminder time of day. ok is false if none
// has been set.
func (s *Settings) ReminderTime(ctx context.Context) (tod model.TimeOfDay, ok bool, err error) {
	raw, ok, err := s.store.GetSetting(ctx, model.SettingReminderTime)
	if err != nil || !ok {
		return model.TimeOfDay{}, false, err
	}

	if strings.Contains(raw, ":") {
		tod, err := model.ParseTimeOfDay(raw)
		if err != nil {
			return model.TimeOfDay{}, false, err
		}
		return tod, true, nil
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return model.TimeOfDay{}, false, fmt.Errorf("invalid reminder time %q: %w", raw, err)
	}
	return model.TimeOfDayOf(time.UnixMilli(ms).In(s.loc)), true, nil
}

// SetReminderTime persists the reminder time of day as an instant today.
func (s *Settings) SetReminderTime(ctx context.Context, tod model.TimeOfDay) error {
	at := tod.On(time.Now().In(s.loc))
	return s.store.SetSetting(ctx, model.SettingReminderTime, strconv.FormatInt(at.UnixMilli(), 10))
}

func (s *Settings) getBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return fallback, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q", key, raw)
	}
	return v, nil
}

func (s *Settings) getTime(ctx context.Context, key string) (time.Time, bool, error) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid value for %s: %q", key, raw)
	}
	return time.UnixMilli(ms), true, nil
}
