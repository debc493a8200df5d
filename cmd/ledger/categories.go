package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Veraticus/ledgerkeep/internal/cli"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long: `Create, edit, and delete income and expense categories.

Each type has a built-in "Others" category that cannot be deleted. Deleting
any other category moves its transactions to "Others" of the same type.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func parseTypeFlag(s string) (model.TransactionType, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseTransactionType(s)
}

func listCategoriesCmd() *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			txType, err := parseTypeFlag(typeFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.store.ListCategories(ctx, txType)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("NAME"),
				cli.TableHeaderStyle.Render("TYPE"),
				cli.TableHeaderStyle.Render("FLAGS"),
				cli.TableHeaderStyle.Render("ID"))
			for _, c := range categories {
				flags := ""
				if c.IsPermanent {
					flags = cli.PermanentIcon + " built-in"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Type, flags, cli.SubtleStyle.Render(c.ID))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Only show categories of this type (income, expense)")

	return cmd
}

func addCategoryCmd() *cobra.Command {
	var (
		typeFlag string
		icon     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txType, err := model.ParseTransactionType(typeFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			category, err := a.store.CreateCategory(ctx, service.CategoryInput{
				Name: args[0],
				Icon: icon,
				Type: txType,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s category %s (%s)", category.Type, category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", string(model.TransactionTypeExpense), "Category type (income, expense)")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name     string
		icon     string
		typeFlag string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a category",
		Long: `Edit a category. Only the flags you pass are changed.

A category's type can only change while no transactions use it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.store.GetCategory(ctx, args[0])
			if err != nil {
				return err
			}

			input := service.CategoryInput{Name: current.Name, Icon: current.Icon, Type: current.Type}
			if cmd.Flags().Changed("name") {
				input.Name = name
			}
			if cmd.Flags().Changed("icon") {
				input.Icon = icon
			}
			if cmd.Flags().Changed("type") {
				if input.Type, err = model.ParseTransactionType(typeFlag); err != nil {
					return err
				}
			}

			category, err := a.store.UpdateCategory(ctx, current.ID, input)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated category "+category.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&icon, "icon", "", "New icon name")
	cmd.Flags().StringVar(&typeFlag, "type", "", "New type (income, expense)")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			category, err := a.store.GetCategory(ctx, args[0])
			if err != nil {
				return err
			}

			ok, err := confirm(cmd, force, fmt.Sprintf("Delete %s category %s and move its transactions to %s?",
				category.Type, category.Name, model.FallbackCategoryName))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("Deletion cancelled."))
				return nil
			}

			result, err := a.store.DeleteCategory(ctx, category.ID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted category %s; moved %d transaction(s) to %s",
				category.Name, result.Moved, result.FallbackName)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
