package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/shopspring/decimal"
)

type accountTotals struct {
	income  decimal.Decimal
	expense decimal.Decimal
}

// GetAccountBalance returns one account with its current balance.
func (s *SQLiteStorage) GetAccountBalance(ctx context.Context, id string) (*model.AccountBalance, error) {
	if err := validateID(id, "account"); err != nil {
		return nil, err
	}

	var balance model.AccountBalance
	err := s.read(ctx, func(tx *sql.Tx) error {
		account, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		totals, err := sumByAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		t := totals[id]
		balance = model.NewAccountBalance(*account, t.income, t.expense)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// ListAccountBalances returns every account with its current balance,
// computed from a single consistent read.
func (s *SQLiteStorage) ListAccountBalances(ctx context.Context) ([]model.AccountBalance, error) {
	var balances []model.AccountBalance
	err := s.read(ctx, func(tx *sql.Tx) error {
		accounts, err := listAccounts(ctx, tx)
		if err != nil {
			return err
		}
		totals, err := sumByAccount(ctx, tx, "")
		if err != nil {
			return err
		}

		balances = make([]model.AccountBalance, 0, len(accounts))
		for _, account := range accounts {
			t := totals[account.ID]
			balances = append(balances, model.NewAccountBalance(account, t.income, t.expense))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// sumByAccount totals income and expense per account. Amounts are stored as
// decimal text, so the arithmetic happens here rather than in SQL.
func sumByAccount(ctx context.Context, q queryer, accountID string) (map[string]accountTotals, error) {
	query := `SELECT account_id, type, amount FROM transactions`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]accountTotals)
	for rows.Next() {
		var (
			account string
			txnType model.TransactionType
			raw     string
		)
		if err := rows.Scan(&account, &txnType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan transaction total: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", raw, err)
		}

		t := totals[account]
		switch txnType {
		case model.TransactionTypeIncome:
			t.income = t.income.Add(amount)
		case model.TransactionTypeExpense:
			t.expense = t.expense.Add(amount)
		}
		totals[account] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction totals: %w", err)
	}
	return totals, nil
}
