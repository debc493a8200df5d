package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FallbackAccountName is the seeded permanent account.
const FallbackAccountName = "Cash"

// Account is a place money is held.
type Account struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	OpeningBalance decimal.Decimal
	ID             string
	Name           string
	Icon           string
	IsDefault      bool
	IsPermanent    bool
}

// AccountBalance is an account together with its derived balance.
type AccountBalance struct {
	Account
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// NewAccountBalance derives the balance from the opening balance and totals.
func NewAccountBalance(account Account, income, expense decimal.Decimal) AccountBalance {
	return AccountBalance{
		Account: account,
		Income:  income,
		Expense: expense,
		Balance: account.OpeningBalance.Add(income).Sub(expense),
	}
}
