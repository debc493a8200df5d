package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/shopspring/decimal"
)

// TransactionType indicates whether money flows into or out of an account.
type TransactionType string

const (
	// TransactionTypeIncome adds to the account balance.
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense subtracts from the account balance.
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionTypes lists every supported type in display order.
var TransactionTypes = []TransactionType{TransactionTypeIncome, TransactionTypeExpense}

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Signed returns amount with the sign this type applies to a balance.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionTypeExpense {
		return amount.Neg()
	}
	return amount
}

// ParseTransactionType parses "income" or "expense", case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown transaction type %q", common.ErrValidation, s)
	}
	return t, nil
}

// Transaction is a single ledger entry.
type Transaction struct {
	Date         time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Amount       decimal.Decimal
	ID           string
	Title        string
	Description  string
	Type         TransactionType
	CategoryID   string
	AccountID    string
	CategoryName string // joined on read
	AccountName  string // joined on read
}

// SignedAmount returns the amount as it affects the account balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}

// ParseAmount parses a user-entered amount. Amounts must be positive; the
// transaction type carries the direction.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", common.ErrValidation)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", common.ErrValidation, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than zero", common.ErrValidation)
	}
	return amount, nil
}
