package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/Veraticus/ledgerkeep/internal/storage"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Record and review transactions",
		Example: `  # Record an expense against the default account
  ledger transactions add --amount 12.50 --title "Lunch"

  # Record income into a specific account and category
  ledger transactions add --type income --amount 2500 --title "Salary" \
    --account <account-id> --category <category-id>

  # Show March
  ledger transactions list --from 2026-03-01 --to 2026-03-31`,
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(updateTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

// transactionFlags are shared by add and update.
type transactionFlags struct {
	date        string
	amount      string
	title       string
	description string
	txType      string
	categoryID  string
	accountID   string
}

func (f *transactionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount, always positive")
	cmd.Flags().StringVar(&f.title, "title", "", "Short title")
	cmd.Flags().StringVar(&f.description, "description", "", "Longer description")
	cmd.Flags().StringVar(&f.txType, "type", string(model.TransactionTypeExpense), "Transaction type (income, expense)")
	cmd.Flags().StringVar(&f.categoryID, "category", "", "Category id (default: Others of the same type)")
	cmd.Flags().StringVar(&f.accountID, "account", "", "Account id (default: the default account)")
}

// apply copies the flags that were set onto input.
func (f *transactionFlags) apply(cmd *cobra.Command, input *service.TransactionInput) error {
	var err error
	if cmd.Flags().Changed("date") {
		if input.Date, err = parseDate(f.date); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("amount") {
		if input.Amount, err = model.ParseAmount(f.amount); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("title") {
		input.Title = f.title
	}
	if cmd.Flags().Changed("description") {
		input.Description = f.description
	}
	if cmd.Flags().Changed("type") {
		if input.Type, err = model.ParseTransactionType(f.txType); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("category") {
		input.CategoryID = f.categoryID
	}
	if cmd.Flags().Changed("account") {
		input.AccountID = f.accountID
	}
	return nil
}

func listTransactionsCmd() *cobra.Command {
	var (
		from       string
		to         string
		accountID  string
		categoryID string
		typeFlag   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := service.TransactionFilter{
				AccountID:  accountID,
				CategoryID: categoryID,
				Limit:      limit,
			}

			var err error
			if filter.Type, err = parseTypeFlag(typeFlag); err != nil {
				return err
			}
			if from != "" {
				start, err := parseDate(from)
				if err != nil {
					return err
				}
				filter.StartDate = &start
			}
			if to != "" {
				end, err := parseDate(to)
				if err != nil {
					return err
				}
				end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
				filter.EndDate = &end
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.store.ListTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No transactions found."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("DATE"),
				cli.TableHeaderStyle.Render("TITLE"),
				cli.TableHeaderStyle.Render("AMOUNT"),
				cli.TableHeaderStyle.Render("CATEGORY"),
				cli.TableHeaderStyle.Render("ACCOUNT"),
				cli.TableHeaderStyle.Render("ID"))
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.Date.Local().Format("2006-01-02"),
					t.Title,
					cli.FormatAmount(t.SignedAmount()),
					t.CategoryName,
					t.AccountName,
					cli.SubtleStyle.Render(t.ID))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&accountID, "account", "", "Only this account id")
	cmd.Flags().StringVar(&categoryID, "category", "", "Only this category id")
	cmd.Flags().StringVar(&typeFlag, "type", "", "Only this type (income, expense)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows (0 for all)")

	return cmd
}

func addTransactionCmd() *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := service.TransactionInput{
				Date: today(),
				Type: model.TransactionTypeExpense,
			}
			if err := flags.apply(cmd, &input); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := fillTransactionDefaults(ctx, a.store, &input); err != nil {
				return err
			}

			txn, err := a.store.CreateTransaction(ctx, input)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded %s %s: %s (%s)",
				txn.Type, txn.Amount.StringFixed(2), txn.Title, txn.ID)))
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

// fillTransactionDefaults picks the default account and the fallback
// category of the transaction's type when none were given.
func fillTransactionDefaults(ctx context.Context, store *storage.SQLiteStorage, input *service.TransactionInput) error {
	if input.AccountID == "" {
		account, err := store.GetDefaultAccount(ctx)
		if err != nil {
			return err
		}
		input.AccountID = account.ID
	}

	if input.CategoryID == "" {
		categories, err := store.ListCategories(ctx, input.Type)
		if err != nil {
			return err
		}
		for _, c := range categories {
			if c.IsPermanent {
				input.CategoryID = c.ID
				break
			}
		}
	}
	return nil
}

func updateTransactionCmd() *cobra.Command {
	var flags transactionFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a transaction",
		Long: `Edit a transaction. Only the flags you pass are changed.

Changing the type without a category moves the transaction to "Others" of
the new type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.store.GetTransaction(ctx, args[0])
			if err != nil {
				return err
			}

			input := service.TransactionInput{
				Date:        current.Date,
				Amount:      current.Amount,
				Title:       current.Title,
				Description: current.Description,
				Type:        current.Type,
				CategoryID:  current.CategoryID,
				AccountID:   current.AccountID,
			}
			if err := flags.apply(cmd, &input); err != nil {
				return err
			}
			if input.Type != current.Type && !cmd.Flags().Changed("category") {
				input.CategoryID = ""
				if err := fillTransactionDefaults(ctx, a.store, &input); err != nil {
					return err
				}
			}

			txn, err := a.store.UpdateTransaction(ctx, current.ID, input)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated transaction "+txn.Title))
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.store.GetTransaction(ctx, args[0])
			if err != nil {
				return err
			}

			ok, err := confirm(cmd, force, fmt.Sprintf("Delete %s %s (%s)?", txn.Title, txn.Amount.StringFixed(2), txn.Date.Local().Format("2006-01-02")))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("Deletion cancelled."))
				return nil
			}

			if err := a.store.DeleteTransaction(ctx, txn.ID); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted transaction "+txn.Title))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
