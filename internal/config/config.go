package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyDatabasePath       = "database.path"
	KeyBackupDir          = "backup.dir"
	KeyBackupKeepAuto     = "backup.keep_auto"
	KeyLockPath           = "maintenance.lock_path"
	KeyRunOnStart         = "maintenance.run_on_start"
	KeyWakeInterval       = "maintenance.wake_interval"
	KeyBudget             = "maintenance.budget"
	KeyLockRetry          = "maintenance.lock_retry"
	KeyReminderPoll       = "notifications.poll_interval"
	KeyReminderLockPath   = "notifications.lock_path"
	KeyLoggingLevel       = "logging.level"
	KeyLoggingFormat      = "logging.format"
	defaultDatabasePath   = "$HOME/.local/share/ledger/ledger.db"
	defaultBackupKeepAuto = 5
)

// Config is the resolved runtime configuration.
type Config struct {
	DatabasePath     string
	BackupDir        string
	LockPath         string
	ReminderLockPath string
	LogLevel         string
	LogFormat        string
	BackupKeepAuto   int
	WakeInterval     time.Duration
	Budget           time.Duration
	LockRetry        time.Duration
	ReminderPoll     time.Duration
	RunOnStart       bool
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, defaultDatabasePath)
	v.SetDefault(KeyBackupDir, "")
	v.SetDefault(KeyBackupKeepAuto, defaultBackupKeepAuto)
	v.SetDefault(KeyLockPath, "")
	v.SetDefault(KeyRunOnStart, true)
	v.SetDefault(KeyWakeInterval, 15*time.Minute)
	v.SetDefault(KeyBudget, 30*time.Second)
	v.SetDefault(KeyLockRetry, 100*time.Millisecond)
	v.SetDefault(KeyReminderPoll, time.Minute)
	v.SetDefault(KeyReminderLockPath, "")
	v.SetDefault(KeyLoggingLevel, "info")
	v.SetDefault(KeyLoggingFormat, "console")
}

// Load resolves the configuration from v. Backup and lock paths default to
// locations next to the database.
func Load(v *viper.Viper) (*Config, error) {
	dbPath := ExpandPath(v.GetString(KeyDatabasePath))
	if dbPath == "" {
		dbPath = ExpandPath(defaultDatabasePath)
	}

	cfg := &Config{
		DatabasePath:     dbPath,
		BackupDir:        siblingPath(v.GetString(KeyBackupDir), dbPath, "backups"),
		LockPath:         siblingPath(v.GetString(KeyLockPath), dbPath, "maintenance.lock"),
		ReminderLockPath: siblingPath(v.GetString(KeyReminderLockPath), dbPath, "reminders.lock"),
		LogLevel:         v.GetString(KeyLoggingLevel),
		LogFormat:        v.GetString(KeyLoggingFormat),
		BackupKeepAuto:   v.GetInt(KeyBackupKeepAuto),
		WakeInterval:     v.GetDuration(KeyWakeInterval),
		Budget:           v.GetDuration(KeyBudget),
		LockRetry:        v.GetDuration(KeyLockRetry),
		ReminderPoll:     v.GetDuration(KeyReminderPoll),
		RunOnStart:       v.GetBool(KeyRunOnStart),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !filepath.IsAbs(c.DatabasePath) && c.DatabasePath != ":memory:" {
		errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", KeyDatabasePath, c.DatabasePath))
	}
	if c.BackupKeepAuto < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyBackupKeepAuto))
	}
	if c.WakeInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyWakeInterval))
	}
	if c.Budget <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyBudget))
	}
	if c.LockRetry <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyLockRetry))
	}
	if c.ReminderPoll <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyReminderPoll))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
