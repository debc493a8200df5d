package main

import (
	"fmt"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/config"
	"github.com/Veraticus/ledgerkeep/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the ledger database",
		Long: `Apply any pending schema migrations. Every other command does this
automatically; run it directly to prepare a new database or to check the
schema version with --status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if !status {
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
			}

			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			if status {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%s is at schema version %d", cfg.DatabasePath, version)))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s migrated to schema version %d", cfg.DatabasePath, version)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Only report the current schema version")

	return cmd
}
