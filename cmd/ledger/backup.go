package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, and restore backups",
		Long: `Backups are JSON snapshots of the whole ledger written to the backup
directory. Automatic backups are managed with "ledger maintenance".`,
	}

	cmd.AddCommand(createBackupCmd())
	cmd.AddCommand(listBackupsCmd())
	cmd.AddCommand(restoreBackupCmd())
	cmd.AddCommand(deleteBackupCmd())

	return cmd
}

func createBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Take a backup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := a.scheduler.ManualBackup(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Backup written to "+path))
			return nil
		},
	}
}

func listBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.backups.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle(cli.FolderIcon+" "+a.backups.Dir()))
			if len(backups) == 0 {
				fmt.Fprintln(out, cli.SubtitleStyle.Render("No backups yet. Run 'ledger backup create' to take one."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("NAME"),
				cli.TableHeaderStyle.Render("KIND"),
				cli.TableHeaderStyle.Render("CREATED"),
				cli.TableHeaderStyle.Render("SIZE"),
				cli.TableHeaderStyle.Render("TRANSACTIONS"))
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					b.Name,
					b.Kind,
					formatRelativeTime(b.CreatedAt),
					formatFileSize(b.Size),
					b.Transactions)
			}
			return w.Flush()
		},
	}
}

func restoreBackupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the ledger with a backup",
		Long: `Replace every account, category, and transaction with the contents of a
backup. A "pre-restore" backup of the current ledger is taken first.

Automatic backup bookkeeping is kept as it is; preferences such as the
reminder time come from the backup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])

			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.backups.Get(ctx, name)
			if err != nil {
				return err
			}

			question := fmt.Sprintf("Replace the ledger with %s (%d accounts, %d categories, %d transactions)?",
				info.Name, info.Accounts, info.Categories, info.Transactions)
			ok, err := confirm(cmd, force, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("Restore cancelled."))
				return nil
			}

			if err := a.backups.Restore(ctx, info.Name, cli.ProgressFunc(os.Stderr, "Restoring ledger")); err != nil {
				return err
			}

			if _, err := a.reminders.Resync(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("Could not reschedule reminder: %v", err)))
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored "+info.Name))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func deleteBackupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])

			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := confirm(cmd, force, "Delete backup "+name+"?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("Deletion cancelled."))
				return nil
			}

			if err := a.backups.Delete(ctx, name); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+name))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
