package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/maintenance"
	"github.com/Veraticus/ledgerkeep/internal/notify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled backups and reminders in the foreground",
		Long: `Stay running and act as the host scheduler: run the automatic backup
check on start and on every wake interval, and deliver the daily reminder
when it is due. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler := cli.NewInterruptHandler(cmd.OutOrStdout(), "Stopping ledger daemon.")
			ctx := handler.HandleInterrupts(cmd.Context())

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf(
				"Ledger daemon running (wake every %s, reminders checked every %s)",
				a.cfg.WakeInterval, a.cfg.ReminderPoll)))

			err = runDaemon(ctx, a, cmd.OutOrStdout())
			if handler.WasInterrupted() {
				return nil
			}
			return err
		},
	}
}

// runDaemon runs the wake and reminder loops until ctx is done.
func runDaemon(ctx context.Context, a *app, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, a.cfg.WakeInterval, func(now time.Time) {
			a.scheduler.Background(ctx, now, a.cfg.Budget, func(result maintenance.BackgroundResult) {
				common.LogDebug(ctx, "background wake finished", common.Fields{"result": result.String()})
			})
		})
	})

	g.Go(func() error {
		return every(ctx, a.cfg.ReminderPoll, func(now time.Time) {
			fired, err := a.triggers.FireDue(ctx, now, deliverTo(out))
			if err != nil {
				common.LogError(ctx, err, "failed to deliver reminders", common.Fields{"fired": fired})
			}
		})
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(now time.Time)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			fn(now)
		}
	}
}

// deliverTo shows reminders on w. A terminal bell precedes the message.
func deliverTo(w io.Writer) func(notify.Trigger) error {
	if w == nil {
		w = os.Stdout
	}
	return func(t notify.Trigger) error {
		_, err := fmt.Fprintf(w, "\a%s\n", cli.FormatInfo(cli.BellIcon+" "+t.Title+": "+t.Body))
		return err
	}
}
