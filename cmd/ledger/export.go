package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/report"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	exportType  string
	start       string
	end         string
	output      string
	month       int
	year        int
	summaryOnly bool
}

func exportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions and totals as CSV",
		Long: `Write a CSV report with income, expense, and net totals, per-account and
per-category summaries, and (unless --summary-only) every transaction in
the period.`,
		Example: `  # Everything, into the current directory
  ledger export

  # March 2026
  ledger export --type monthly --month 3 --year 2026

  # A custom range to stdout
  ledger export --type custom --start 2026-01-01 --end 2026-03-31 --output -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.store.ListTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return fmt.Errorf("failed to load transactions: %w", err)
			}

			now := time.Now()
			summary := report.Summarize(txns, opts)

			if flags.output == "-" {
				return report.WriteCSV(cmd.OutOrStdout(), txns, summary, opts, now)
			}

			path, err := exportPath(flags.output, opts, now)
			if err != nil {
				return err
			}
			if err := writeReport(path, func(w io.Writer) error {
				return report.WriteCSV(w, txns, summary, opts, now)
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s report written to %s", report.Label(opts), path)))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s Income %s  Expense %s  Net %s\n",
				cli.ChartIcon,
				cli.FormatAmount(summary.TotalIncome),
				cli.FormatAmount(summary.TotalExpense.Neg()),
				cli.FormatAmount(summary.Net))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.exportType, "type", "all", "Period to export (all, monthly, yearly, custom)")
	cmd.Flags().IntVar(&flags.month, "month", 0, "Month for --type monthly (1-12, default: this month)")
	cmd.Flags().IntVar(&flags.year, "year", 0, "Year for --type monthly or yearly (default: this year)")
	cmd.Flags().StringVar(&flags.start, "start", "", "First day for --type custom (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.end, "end", "", "Last day for --type custom (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "File or directory to write, or - for stdout (default: current directory)")
	cmd.Flags().BoolVar(&flags.summaryOnly, "summary-only", false, "Leave out the transaction rows")

	return cmd
}

func (f *exportFlags) options() (report.Options, error) {
	exportType, err := report.ParseExportType(f.exportType)
	if err != nil {
		return report.Options{}, err
	}

	now := time.Now()
	opts := report.Options{
		Type:        exportType,
		Location:    time.Local,
		Month:       time.Month(f.month),
		Year:        f.year,
		SummaryOnly: f.summaryOnly,
	}

	switch exportType {
	case report.ExportMonthly:
		if f.month == 0 {
			opts.Month = now.Month()
		}
		if f.year == 0 {
			opts.Year = now.Year()
		}
	case report.ExportYearly:
		if f.year == 0 {
			opts.Year = now.Year()
		}
	case report.ExportCustom:
		if f.start == "" || f.end == "" {
			return report.Options{}, fmt.Errorf("%w: --start and --end are required for a custom export", common.ErrValidation)
		}
		if opts.StartDate, err = parseDate(f.start); err != nil {
			return report.Options{}, err
		}
		if opts.EndDate, err = parseDate(f.end); err != nil {
			return report.Options{}, err
		}
	}

	if err := opts.Validate(); err != nil {
		return report.Options{}, err
	}
	return opts, nil
}

// exportPath resolves --output. An empty value or a directory gets a
// generated file name.
func exportPath(output string, opts report.Options, now time.Time) (string, error) {
	if output == "" {
		output = "."
	}
	info, err := os.Stat(output)
	if err == nil && info.IsDir() {
		return filepath.Join(output, report.Filename(opts, now)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check output path: %w", err)
	}
	return output, nil
}

func writeReport(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	return nil
}
