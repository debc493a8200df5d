package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
		Long: `Create, edit, and delete the accounts money is held in.

Exactly one account is the default for new transactions. The built-in Cash
account cannot be deleted; deleting any other account moves its transactions
to Cash.`,
		Example: `  # Add a bank account with an opening balance
  ledger accounts add "Checking" --opening 1200.50

  # Make it the default
  ledger accounts default <id>

  # See balances
  ledger accounts list`,
	}

	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(addAccountCmd())
	cmd.AddCommand(updateAccountCmd())
	cmd.AddCommand(deleteAccountCmd())
	cmd.AddCommand(defaultAccountCmd())
	cmd.AddCommand(balanceAccountCmd())

	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			balances, err := a.store.ListAccountBalances(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("NAME"),
				cli.TableHeaderStyle.Render("BALANCE"),
				cli.TableHeaderStyle.Render("OPENING"),
				cli.TableHeaderStyle.Render("FLAGS"),
				cli.TableHeaderStyle.Render("ID"))
			for _, b := range balances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.Name,
					cli.FormatAmount(b.Balance),
					b.OpeningBalance.StringFixed(2),
					accountFlags(b.Account),
					cli.SubtleStyle.Render(b.ID))
			}
			return w.Flush()
		},
	}
}

func accountFlags(a model.Account) string {
	flags := ""
	if a.IsDefault {
		flags += cli.DefaultIcon + " default "
	}
	if a.IsPermanent {
		flags += cli.PermanentIcon + " built-in"
	}
	return flags
}

func addAccountCmd() *cobra.Command {
	var (
		opening   string
		icon      string
		isDefault bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := parseBalance(opening)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.store.CreateAccount(ctx, service.AccountInput{
				Name:           args[0],
				Icon:           icon,
				OpeningBalance: balance,
				IsDefault:      isDefault,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added account %s (%s)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&opening, "opening", "0", "Opening balance")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Make this the default account")

	return cmd
}

func updateAccountCmd() *cobra.Command {
	var (
		name      string
		opening   string
		icon      string
		isDefault bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit an account",
		Long: `Edit an account. Only the flags you pass are changed.

The default flag can only be turned on here; to move the default elsewhere use
"ledger accounts default" on the other account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.store.GetAccount(ctx, args[0])
			if err != nil {
				return err
			}

			input := service.AccountInput{
				Name:           current.Name,
				Icon:           current.Icon,
				OpeningBalance: current.OpeningBalance,
			}
			if cmd.Flags().Changed("name") {
				input.Name = name
			}
			if cmd.Flags().Changed("icon") {
				input.Icon = icon
			}
			if cmd.Flags().Changed("opening") {
				if input.OpeningBalance, err = parseBalance(opening); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("default") {
				if !isDefault {
					return fmt.Errorf("%w: --default can only be turned on; run 'ledger accounts default' on another account instead", common.ErrValidation)
				}
				input.IsDefault = true
			}

			account, err := a.store.UpdateAccount(ctx, current.ID, input)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated account "+account.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&opening, "opening", "", "New opening balance")
	cmd.Flags().StringVar(&icon, "icon", "", "New icon name")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Make this the default account")

	return cmd
}

func deleteAccountCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Long: `Delete an account. Its transactions are moved to the Cash account.
If it was the default account, Cash becomes the default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.store.GetAccount(ctx, args[0])
			if err != nil {
				return err
			}

			ok, err := confirm(cmd, force, fmt.Sprintf("Delete account %s and move its transactions to %s?", account.Name, model.FallbackAccountName))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("Deletion cancelled."))
				return nil
			}

			result, err := a.store.DeleteAccount(ctx, account.ID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted account %s; moved %d transaction(s) to %s",
				account.Name, result.Moved, result.FallbackName)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func defaultAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <id>",
		Short: "Make an account the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SetDefaultAccount(ctx, args[0]); err != nil {
				return err
			}

			account, err := a.store.GetDefaultAccount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(account.Name+" is now the default account"))
			return nil
		},
	}
}

func balanceAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <id>",
		Short: "Show an account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.store.GetAccountBalance(ctx, args[0])
			if err != nil {
				return err
			}

			content := fmt.Sprintf("Opening:  %s\nIncome:   %s\nExpense:  %s\nBalance:  %s",
				b.OpeningBalance.StringFixed(2),
				b.Income.StringFixed(2),
				b.Expense.StringFixed(2),
				cli.FormatAmount(b.Balance))
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(b.Name, content))
			return nil
		},
	}
}
