package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/config"
	"github.com/Veraticus/ledgerkeep/internal/maintenance"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/notify"
	"github.com/Veraticus/ledgerkeep/internal/report"
	"github.com/Veraticus/ledgerkeep/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate(" 2026-03-14 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.Local), got)

	for _, bad := range []string{"", "14/03/2026", "2026-13-01"} {
		_, err := parseDate(bad)
		assert.ErrorIs(t, err, common.ErrValidation, bad)
	}
}

func TestParseBalance(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"-25.50", "-25.5"},
		{" 1000 ", "1000"},
	} {
		got, err := parseBalance(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), tt.in)
	}

	_, err := parseBalance("ten")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.0 KB", formatFileSize(1024))
	assert.Equal(t, "1.5 MB", formatFileSize(1536*1024))
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatRelativeTime(now.Add(-10*time.Second)))
	assert.Equal(t, "5 minutes ago", formatRelativeTime(now.Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "1 hour ago", formatRelativeTime(now.Add(-61*time.Minute)))
	assert.Equal(t, "yesterday", formatRelativeTime(now.Add(-25*time.Hour)))
}

func TestDescribeError(t *testing.T) {
	err := describeError(fmt.Errorf("%w: account abc", common.ErrNotFound))
	assert.True(t, strings.HasPrefix(err, "no such record"), err)

	plain := errors.New("boom")
	assert.Equal(t, "boom", describeError(plain))
}

func TestWireApp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := t.TempDir()

	cfg := &config.Config{
		DatabasePath:     db.Path,
		BackupDir:        filepath.Join(dir, "backups"),
		LockPath:         filepath.Join(dir, "maintenance.lock"),
		ReminderLockPath: filepath.Join(dir, "reminders.lock"),
		BackupKeepAuto:   3,
		WakeInterval:     time.Minute,
		Budget:           time.Second,
		LockRetry:        10 * time.Millisecond,
		ReminderPoll:     time.Minute,
	}

	a, err := wireApp(cfg, db.Storage)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.scheduler.SetEnabled(ctx, true))

	res := a.scheduler.Foreground(ctx, time.Now())
	assert.Equal(t, maintenance.OutcomeRan, res.Outcome)
	assert.FileExists(t, res.Path)

	// Second run inside the interval does nothing.
	res = a.scheduler.Foreground(ctx, time.Now())
	assert.Equal(t, maintenance.OutcomeNotDue, res.Outcome)

	require.NoError(t, a.reminders.SetEnabled(ctx, true))
	pending, err := a.triggers.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, notify.ReminderTitle, pending[0].Title)
}

func TestExportOptions(t *testing.T) {
	now := time.Now()

	opts, err := (&exportFlags{exportType: "monthly"}).options()
	require.NoError(t, err)
	assert.Equal(t, report.ExportMonthly, opts.Type)
	assert.Equal(t, now.Month(), opts.Month)
	assert.Equal(t, now.Year(), opts.Year)

	opts, err = (&exportFlags{exportType: "yearly", year: 2025}).options()
	require.NoError(t, err)
	assert.Equal(t, 2025, opts.Year)

	opts, err = (&exportFlags{exportType: "custom", start: "2026-01-01", end: "2026-03-31", summaryOnly: true}).options()
	require.NoError(t, err)
	assert.True(t, opts.SummaryOnly)
	assert.Equal(t, time.March, opts.EndDate.Month())

	_, err = (&exportFlags{exportType: "custom", start: "2026-01-01"}).options()
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = (&exportFlags{exportType: "custom", start: "2026-04-01", end: "2026-03-01"}).options()
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = (&exportFlags{exportType: "monthly", month: 13}).options()
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = (&exportFlags{exportType: "weekly"}).options()
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExportPath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	opts := report.Options{Type: report.ExportYearly, Year: 2026}

	got, err := exportPath(dir, opts, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Report_2026_2026-03-14T09-30-00-000Z.csv"), got)

	file := filepath.Join(dir, "mine.csv")
	got, err = exportPath(file, opts, now)
	require.NoError(t, err)
	assert.Equal(t, file, got)
}

func TestFormatStatus(t *testing.T) {
	last := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.Local)

	off := formatStatus(&maintenance.Status{Interval: model.EveryDay})
	assert.Contains(t, off, "Every day")
	assert.Contains(t, off, "never")

	due := formatStatus(&maintenance.Status{Enabled: true, Due: true, Interval: model.Every6Hours, LastRun: &last})
	assert.Contains(t, due, "Every 6 hours")
	assert.Contains(t, due, "now")

	scheduled := formatStatus(&maintenance.Status{
		Enabled:  true,
		Interval: model.EveryDay,
		LastRun:  &last,
		NextDue:  last.Add(24 * time.Hour),
	})
	assert.Contains(t, scheduled, "2026-03-15 09:00")
}

func TestDeliverTo(t *testing.T) {
	var buf bytes.Buffer
	err := deliverTo(&buf)(notify.Trigger{Title: notify.ReminderTitle, Body: notify.ReminderBody})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Daily Reminder: Don't forget to log your expenses today!")
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := every(ctx, time.Millisecond, func(time.Time) {
		calls++
		if calls >= 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWriteReportCleansUpOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	boom := errors.New("boom")

	err := writeReport(path, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, path)
}
