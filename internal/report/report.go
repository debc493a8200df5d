// Package report aggregates transactions into export summaries and writes
// them as CSV.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/shopspring/decimal"
)

// ExportType selects which transactions a report covers.
type ExportType string

// Export types.
const (
	ExportAll     ExportType = "all"
	ExportMonthly ExportType = "monthly"
	ExportYearly  ExportType = "yearly"
	ExportCustom  ExportType = "custom"
)

// ParseExportType validates an export type name.
func ParseExportType(s string) (ExportType, error) {
	switch t := ExportType(strings.ToLower(strings.TrimSpace(s))); t {
	case ExportAll, ExportMonthly, ExportYearly, ExportCustom:
		return t, nil
	case "":
		return ExportAll, nil
	default:
		return "", fmt.Errorf("%w: unknown export type %q (want all, monthly, yearly or custom)", common.ErrValidation, s)
	}
}

// Options selects the report period. Dates are compared by calendar day in
// Location, which defaults to the local time zone.
type Options struct {
	StartDate   time.Time
	EndDate     time.Time
	Location    *time.Location
	Type        ExportType
	Month       time.Month
	Year        int
	SummaryOnly bool
}

// Validate checks that the options name a complete period.
func (o Options) Validate() error {
	switch o.Type {
	case ExportAll, "":
		return nil
	case ExportMonthly:
		if o.Month < time.January || o.Month > time.December {
			return fmt.Errorf("%w: monthly export needs a month between 1 and 12", common.ErrValidation)
		}
		if o.Year <= 0 {
			return fmt.Errorf("%w: monthly export needs a year", common.ErrValidation)
		}
	case ExportYearly:
		if o.Year <= 0 {
			return fmt.Errorf("%w: yearly export needs a year", common.ErrValidation)
		}
	case ExportCustom:
		if o.StartDate.IsZero() || o.EndDate.IsZero() {
			return fmt.Errorf("%w: custom export needs a start and end date", common.ErrValidation)
		}
		if dayOf(o.StartDate, o.location()) > dayOf(o.EndDate, o.location()) {
			return fmt.Errorf("%w: start date is after end date", common.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown export type %q", common.ErrValidation, o.Type)
	}
	return nil
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Filter returns the transactions that fall in the selected period. The
// custom range includes both end days.
func Filter(txns []model.Transaction, opts Options) []model.Transaction {
	loc := opts.location()
	start, end := dayOf(opts.StartDate, loc), dayOf(opts.EndDate, loc)

	out := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		date := t.Date.In(loc)
		switch opts.Type {
		case ExportMonthly:
			if date.Year() != opts.Year || date.Month() != opts.Month {
				continue
			}
		case ExportYearly:
			if date.Year() != opts.Year {
				continue
			}
		case ExportCustom:
			if d := dayOf(t.Date, loc); d < start || d > end {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func dayOf(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// AccountSummary is the per-account slice of a report.
type AccountSummary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
	Name    string
}

// CategoryTotal is the total for one category of one type.
type CategoryTotal struct {
	Amount decimal.Decimal
	Name   string
}

// Summary is the aggregate view of a set of transactions.
type Summary struct {
	TotalIncome       decimal.Decimal
	TotalExpense      decimal.Decimal
	Net               decimal.Decimal
	Accounts          []AccountSummary
	IncomeCategories  []CategoryTotal
	ExpenseCategories []CategoryTotal
}

// Summarize totals the transactions in the selected period.
func Summarize(txns []model.Transaction, opts Options) Summary {
	var (
		summary  Summary
		accounts = map[string]*AccountSummary{}
		income   = map[string]decimal.Decimal{}
		expense  = map[string]decimal.Decimal{}
	)

	for _, t := range Filter(txns, opts) {
		acct, ok := accounts[t.AccountName]
		if !ok {
			acct = &AccountSummary{Name: t.AccountName}
			accounts[t.AccountName] = acct
		}

		category := t.CategoryName
		if category == "" {
			category = model.FallbackCategoryName
		}

		switch t.Type {
		case model.TransactionTypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
			acct.Income = acct.Income.Add(t.Amount)
			income[category] = income[category].Add(t.Amount)
		case model.TransactionTypeExpense:
			summary.TotalExpense = summary.TotalExpense.Add(t.Amount)
			acct.Expense = acct.Expense.Add(t.Amount)
			expense[category] = expense[category].Add(t.Amount)
		}
	}
	summary.Net = summary.TotalIncome.Sub(summary.TotalExpense)

	summary.Accounts = make([]AccountSummary, 0, len(accounts))
	for _, acct := range accounts {
		acct.Net = acct.Income.Sub(acct.Expense)
		summary.Accounts = append(summary.Accounts, *acct)
	}
	sort.Slice(summary.Accounts, func(i, j int) bool {
		return summary.Accounts[i].Name < summary.Accounts[j].Name
	})

	summary.IncomeCategories = rankCategories(income)
	summary.ExpenseCategories = rankCategories(expense)
	return summary
}

func rankCategories(totals map[string]decimal.Decimal) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(totals))
	for name, amount := range totals {
		ranked = append(ranked, CategoryTotal{Name: name, Amount: amount})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Amount.Cmp(ranked[j].Amount); c != 0 {
			return c > 0
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// Label describes the report period for display.
func Label(opts Options) string {
	switch opts.Type {
	case ExportMonthly:
		return fmt.Sprintf("%s %d", opts.Month, opts.Year)
	case ExportYearly:
		return fmt.Sprintf("Year %d", opts.Year)
	case ExportCustom:
		loc := opts.location()
		return fmt.Sprintf("%s - %s",
			opts.StartDate.In(loc).Format("02 Jan 2006"),
			opts.EndDate.In(loc).Format("02 Jan 2006"))
	default:
		return "All Time"
	}
}

var filenameReplacer = strings.NewReplacer(
	" ", "_", "\t", "_",
	`\`, "-", "/", "-", ":", "-", "*", "-", "?", "-", `"`, "-", "<", "-", ">", "-", "|", "-",
)

// Filename returns a file name for a CSV report generated at now.
func Filename(opts Options, now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15-04-05-000Z")

	var name string
	switch opts.Type {
	case ExportMonthly:
		name = fmt.Sprintf("Report_%s_%d_%s.csv", opts.Month, opts.Year, stamp)
	case ExportYearly:
		name = fmt.Sprintf("Report_%d_%s.csv", opts.Year, stamp)
	case ExportCustom:
		loc := opts.location()
		name = fmt.Sprintf("Report_%s_to_%s_%s.csv",
			opts.StartDate.In(loc).Format("2006-01-02"),
			opts.EndDate.In(loc).Format("2006-01-02"),
			stamp)
	default:
		name = fmt.Sprintf("Transactions_Report_%s.csv", stamp)
	}
	return filenameReplacer.Replace(name)
}
