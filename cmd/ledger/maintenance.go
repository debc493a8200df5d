package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/maintenance"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/spf13/cobra"
)

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Configure and run automatic backups",
		Long: `Automatic backups run when the app starts and on every wake of
"ledger daemon", but only once the configured interval has passed since the
last one.`,
		Example: `  # Back up every 12 hours
  ledger maintenance enable
  ledger maintenance interval 12h

  # See when the next backup is due
  ledger maintenance status`,
	}

	cmd.AddCommand(maintenanceStatusCmd())
	cmd.AddCommand(maintenanceRunCmd())
	cmd.AddCommand(maintenanceToggleCmd("enable", true))
	cmd.AddCommand(maintenanceToggleCmd("disable", false))
	cmd.AddCommand(maintenanceIntervalCmd())

	return cmd
}

func maintenanceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the automatic backup schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.scheduler.Status(ctx, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Automatic Backups", formatStatus(status)))
			return nil
		},
	}
}

func formatStatus(status *maintenance.Status) string {
	var b strings.Builder

	state := cli.StyleWarning("off")
	if status.Enabled {
		state = cli.StyleSuccess("on")
	}
	fmt.Fprintf(&b, "Enabled:   %s\n", state)
	fmt.Fprintf(&b, "Interval:  %s\n", status.Interval.Label())

	if status.LastRun != nil {
		fmt.Fprintf(&b, "Last run:  %s\n", formatRelativeTime(*status.LastRun))
	} else {
		fmt.Fprintf(&b, "Last run:  %s\n", cli.SubtleStyle.Render("never"))
	}

	switch {
	case !status.Enabled:
		fmt.Fprintf(&b, "Next due:  %s", cli.SubtleStyle.Render("-"))
	case status.Due:
		fmt.Fprintf(&b, "Next due:  %s", cli.StyleInfo("now"))
	default:
		fmt.Fprintf(&b, "Next due:  %s", status.NextDue.Local().Format("2006-01-02 15:04"))
	}
	return b.String()
}

func maintenanceRunCmd() *cobra.Command {
	var trigger string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the due check once",
		Long: `Run the automatic backup check once, the same way the app does on start
(--trigger foreground) or on a periodic wake (--trigger background).

Nothing is written unless automatic backups are enabled and due.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			switch trigger {
			case "foreground":
				res := a.scheduler.Foreground(ctx, time.Now())
				if res.Outcome == maintenance.OutcomeRan {
					fmt.Fprintln(out, cli.FormatSuccess("Backup written to "+res.Path))
				} else {
					fmt.Fprintln(out, cli.FormatInfo("Maintenance "+res.Outcome.String()))
				}
			case "background":
				var result maintenance.BackgroundResult
				a.scheduler.Background(ctx, time.Now(), a.cfg.Budget, func(r maintenance.BackgroundResult) {
					result = r
				})
				if result == maintenance.Failed {
					return errors.New("background maintenance failed, see the log for details")
				}
				fmt.Fprintln(out, cli.FormatInfo("Background wake: "+result.String()))
			default:
				return fmt.Errorf("%w: unknown trigger %q (want foreground or background)", common.ErrValidation, trigger)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", "foreground", "Trigger to simulate (foreground, background)")

	return cmd
}

func maintenanceToggleCmd(use string, enabled bool) *cobra.Command {
	short := "Turn automatic backups on"
	if !enabled {
		short = "Turn automatic backups off"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.SetEnabled(ctx, enabled); err != nil {
				return err
			}

			if enabled {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Automatic backups enabled"))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Automatic backups disabled"))
			}
			return nil
		},
	}
}

func maintenanceIntervalCmd() *cobra.Command {
	names := make([]string, 0, len(model.BackupIntervals))
	for _, i := range model.BackupIntervals {
		names = append(names, i.String())
	}

	return &cobra.Command{
		Use:       "interval <" + strings.Join(names, "|") + ">",
		Short:     "Set how often automatic backups run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := model.ParseBackupInterval(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.SetInterval(ctx, interval); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Automatic backups: "+strings.ToLower(interval.Label())))
			return nil
		},
	}
}
