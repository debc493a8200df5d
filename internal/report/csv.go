package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/shopspring/decimal"
)

// Title is the first line of every exported report.
const Title = "Ledger Export"

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func typeLabel(t model.TransactionType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// WriteCSV writes the report header, the summary tables and, unless
// opts.SummaryOnly is set, one row per transaction in the period.
func WriteCSV(w io.Writer, txns []model.Transaction, summary Summary, opts Options, generatedAt time.Time) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{Title},
		{"Export Type:", Label(opts)},
		{"Generated on:", generatedAt.In(opts.location()).Format("2006-01-02 15:04:05")},
		{"Total Income:", money(summary.TotalIncome)},
		{"Total Expense:", money(summary.TotalExpense)},
		{"Net Balance:", money(summary.Net)},
		{},
		{"Account-wise Summary:"},
		{"Account", "Income", "Expense", "Net"},
	}
	for _, a := range summary.Accounts {
		records = append(records, []string{a.Name, money(a.Income), money(a.Expense), money(a.Net)})
	}

	for _, section := range []struct {
		title  string
		totals []CategoryTotal
	}{
		{"Income Categories:", summary.IncomeCategories},
		{"Expense Categories:", summary.ExpenseCategories},
	} {
		records = append(records, []string{}, []string{section.title}, []string{"Category", "Amount"})
		for _, c := range section.totals {
			records = append(records, []string{c.Name, money(c.Amount)})
		}
	}

	if !opts.SummaryOnly {
		records = append(records,
			[]string{},
			[]string{"Date", "Title", "Amount", "Type", "Category", "Account", "Description"})
		for _, t := range Filter(txns, opts) {
			category := t.CategoryName
			if category == "" {
				category = model.FallbackCategoryName
			}
			records = append(records, []string{
				t.Date.In(opts.location()).Format("2006-01-02"),
				t.Title,
				money(t.Amount),
				typeLabel(t.Type),
				category,
				t.AccountName,
				t.Description,
			})
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
