package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
)

// BackupInterval is one of the supported automatic backup frequencies.
type BackupInterval time.Duration

// Supported backup intervals.
const (
	Every6Hours  = BackupInterval(6 * time.Hour)
	Every12Hours = BackupInterval(12 * time.Hour)
	EveryDay     = BackupInterval(24 * time.Hour)
	Every3Days   = BackupInterval(72 * time.Hour)
	EveryWeek    = BackupInterval(168 * time.Hour)

	DefaultBackupInterval = EveryDay
)

// BackupIntervals lists the supported intervals, shortest first.
var BackupIntervals = []BackupInterval{Every6Hours, Every12Hours, EveryDay, Every3Days, EveryWeek}

var intervalNames = map[BackupInterval][2]string{
	Every6Hours:  {"6h", "Every 6 hours"},
	Every12Hours: {"12h", "Every 12 hours"},
	EveryDay:     {"1d", "Every day"},
	Every3Days:   {"3d", "Every 3 days"},
	EveryWeek:    {"7d", "Every week"},
}

// Duration returns the interval as a time.Duration.
func (i BackupInterval) Duration() time.Duration { return time.Duration(i) }

// Millis returns the interval in milliseconds, the persisted form.
func (i BackupInterval) Millis() int64 { return time.Duration(i).Milliseconds() }

// IsValid reports whether i is one of the supported intervals.
func (i BackupInterval) IsValid() bool {
	_, ok := intervalNames[i]
	return ok
}

// String returns the short form, e.g. "1d".
func (i BackupInterval) String() string {
	if n, ok := intervalNames[i]; ok {
		return n[0]
	}
	return time.Duration(i).String()
}

// Label returns the display form, e.g. "Every day".
func (i BackupInterval) Label() string {
	if n, ok := intervalNames[i]; ok {
		return n[1]
	}
	return time.Duration(i).String()
}

// ParseBackupInterval accepts the short form ("6h", "1d", ...) or a
// millisecond count as persisted in settings.
func ParseBackupInterval(s string) (BackupInterval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range intervalNames {
		if n[0] == s {
			return i, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		i := BackupInterval(time.Duration(ms) * time.Millisecond)
		if i.IsValid() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported backup interval %q (want 6h, 12h, 1d, 3d or 7d)", common.ErrValidation, s)
}

// TimeOfDay is a wall-clock time used for the daily reminder.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// DefaultReminderTime is used when no reminder time has been configured.
var DefaultReminderTime = TimeOfDay{Hour: 21, Minute: 0}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: reminder time %q must be HH:MM", common.ErrValidation, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// TimeOfDayOf extracts the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// On returns the instant at this time of day on the calendar date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
