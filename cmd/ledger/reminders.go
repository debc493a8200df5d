package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/spf13/cobra"
)

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage the daily logging reminder",
		Long: `A single daily reminder nudges you to log the day's expenses. It is
delivered by "ledger daemon".`,
	}

	cmd.AddCommand(reminderStatusCmd())
	cmd.AddCommand(reminderToggleCmd("enable", true))
	cmd.AddCommand(reminderToggleCmd("disable", false))
	cmd.AddCommand(reminderSetCmd())
	cmd.AddCommand(reminderCancelCmd())

	return cmd
}

func reminderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the reminder settings and what is scheduled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			enabled, err := a.settings.NotificationEnabled(ctx)
			if err != nil {
				return err
			}
			tod, ok, err := a.settings.ReminderTime(ctx)
			if err != nil {
				return err
			}
			if !ok {
				tod = model.DefaultReminderTime
			}
			pending, err := a.triggers.Pending(ctx)
			if err != nil {
				return err
			}

			state := cli.StyleWarning("off")
			if enabled {
				state = cli.StyleSuccess("on")
			}
			body := fmt.Sprintf("Enabled:  %s\nTime:     %s", state, tod)
			for _, t := range pending {
				body += fmt.Sprintf("\nNext:     %s", t.FireAt.Local().Format("Mon 2006-01-02 15:04"))
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.BellIcon+" Reminder", body))
			return nil
		},
	}
}

func reminderToggleCmd(use string, enabled bool) *cobra.Command {
	short := "Turn the daily reminder on"
	if !enabled {
		short = "Turn the daily reminder off"
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

			if err := a.reminders.SetEnabled(ctx, enabled); err != nil {
				return err
			}

			if enabled {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Daily reminder enabled"))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Daily reminder disabled"))
			}
			return nil
		},
	}
}

func reminderSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <HH:MM>",
		Short: "Schedule the daily reminder at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tod, err := model.ParseTimeOfDay(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			trigger, err := a.reminders.ScheduleDailyReminder(ctx, tod)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reminder set for %s (next %s)",
				tod, trigger.FireAt.Local().Format(time.DateTime))))
			return nil
		},
	}
}

func reminderCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Remove every scheduled reminder",
		Long: `Remove every scheduled reminder without changing the enabled setting.
The reminder is scheduled again on the next start while it is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reminders.CancelAllNotifications(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Scheduled reminders cancelled"))
			return nil
		},
	}
}
