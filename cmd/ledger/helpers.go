package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/backup"
	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/config"
	"github.com/Veraticus/ledgerkeep/internal/maintenance"
	"github.com/Veraticus/ledgerkeep/internal/notify"
	"github.com/Veraticus/ledgerkeep/internal/settings"
	"github.com/Veraticus/ledgerkeep/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// app holds everything a command needs once the ledger is open.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	settings  *settings.Settings
	backups   *backup.Manager
	scheduler *maintenance.Scheduler
	triggers  *notify.Store
	reminders *notify.Reminders
}

// openApp opens and migrates the ledger and wires its services. With
// startHook set it runs the app-start maintenance check when configured.
func openApp(ctx context.Context, startHook bool) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := wireApp(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if startHook && cfg.RunOnStart {
		a.onStart(ctx)
	}
	return a, nil
}

func wireApp(cfg *config.Config, store *storage.SQLiteStorage) (*app, error) {
	prefs := settings.New(store, nil)

	backups, err := backup.NewManager(store, cfg.BackupDir, backup.WithKeepAuto(cfg.BackupKeepAuto))
	if err != nil {
		return nil, fmt.Errorf("failed to create backup manager: %w", err)
	}

	locker, err := maintenance.NewFileLocker(cfg.LockPath, cfg.LockRetry)
	if err != nil {
		return nil, err
	}

	scheduler, err := maintenance.NewScheduler(prefs, backups, locker)
	if err != nil {
		return nil, err
	}

	reminderLock, err := maintenance.NewFileLocker(cfg.ReminderLockPath, cfg.LockRetry)
	if err != nil {
		return nil, err
	}

	triggers := notify.NewStore(store, nil, reminderLock)
	reminders, err := notify.NewReminders(triggers, prefs, reminderLock, nil)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		settings:  prefs,
		backups:   backups,
		scheduler: scheduler,
		triggers:  triggers,
		reminders: reminders,
	}, nil
}

// onStart is the "on app start" hook. Nothing here fails the command.
func (a *app) onStart(ctx context.Context) {
	res := a.scheduler.Foreground(ctx, time.Now())
	if res.Outcome == maintenance.OutcomeRan {
		slog.Debug("automatic backup taken on start", "path", res.Path)
	}

	if _, err := a.reminders.Resync(ctx); err != nil {
		common.LogError(ctx, err, "failed to resync reminders", nil)
	}
}

func (a *app) Close() error {
	return a.store.Close()
}

// parseDate accepts YYYY-MM-DD in the local time zone.
func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", common.ErrValidation, s)
	}
	return t, nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

// parseBalance accepts any decimal, including zero and negatives.
func parseBalance(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: balance %q is not a number", common.ErrValidation, s)
	}
	return d, nil
}

// confirm asks on stdin unless force is set.
func confirm(cmd *cobra.Command, force bool, question string) (bool, error) {
	if force {
		return true, nil
	}
	reader := cli.NewNonBlockingReader(cmd.InOrStdin())
	return cli.Confirm(cmd.Context(), reader, cmd.OutOrStdout(), question)
}
