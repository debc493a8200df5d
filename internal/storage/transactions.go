package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const transactionSelect = `
	SELECT t.id, t.date, t.title, t.description, t.amount, t.type,
	       t.category_id, t.account_id, c.name, a.name, t.created_at, t.updated_at
	FROM transactions t
	JOIN categories c ON c.id = t.category_id
	JOIN accounts a ON a.id = t.account_id`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn    model.Transaction
		amount string
	)
	if err := row.Scan(
		&txn.ID, &txn.Date, &txn.Title, &txn.Description, &amount, &txn.Type,
		&txn.CategoryID, &txn.AccountID, &txn.CategoryName, &txn.AccountName,
		&txn.CreatedAt, &txn.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q for transaction %s: %w", amount, txn.ID, err)
	}
	txn.Amount = parsed
	return &txn, nil
}

// CreateTransaction records a new ledger entry.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, input service.TransactionInput) (*model.Transaction, error) {
	if err := validateTransactionInput(&input); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	var created *model.Transaction
	err := s.write(ctx, func(tx *sql.Tx) error {
		if err := checkTransactionRefs(ctx, tx, &input); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
			(id, date, title, description, amount, type, category_id, account_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, input.Date.UTC(), input.Title, input.Description, input.Amount.String(),
			input.Type, input.CategoryID, input.AccountID, now, now,
		); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		var err error
		created, err = getTransaction(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created transaction", "id", id, "type", input.Type, "amount", input.Amount.String())
	return created, nil
}

// UpdateTransaction replaces every editable field of a transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, id string, input service.TransactionInput) (*model.Transaction, error) {
	if err := validateID(id, "transaction"); err != nil {
		return nil, err
	}
	if err := validateTransactionInput(&input); err != nil {
		return nil, err
	}

	var updated *model.Transaction
	err := s.write(ctx, func(tx *sql.Tx) error {
		if _, err := getTransaction(ctx, tx, id); err != nil {
			return err
		}
		if err := checkTransactionRefs(ctx, tx, &input); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET date = ?, title = ?, description = ?, amount = ?, type = ?,
			    category_id = ?, account_id = ?, updated_at = ?
			WHERE id = ?`,
			input.Date.UTC(), input.Title, input.Description, input.Amount.String(), input.Type,
			input.CategoryID, input.AccountID, time.Now().UTC(), id,
		); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		var err error
		updated, err = getTransaction(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("updated transaction", "id", id)
	return updated, nil
}

// DeleteTransaction removes a transaction.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateID(id, "transaction"); err != nil {
		return err
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check deleted rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("deleted transaction", "id", id)
	return nil
}

// GetTransaction returns a transaction with its account and category names.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "transaction"); err != nil {
		return nil, err
	}
	return getTransaction(ctx, s.db, id)
}

// ListTransactions returns transactions newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", common.ErrValidation)
	}
	return listTransactions(ctx, s.db, filter)
}

func listTransactions(ctx context.Context, q queryer, filter service.TransactionFilter) ([]model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.StartDate != nil {
		where = append(where, "t.date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "t.date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.AccountID != "" {
		where = append(where, "t.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, filter.Type)
	}

	query := transactionSelect
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY t.date DESC, t.created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	slog.Debug("retrieved transactions", "count", len(transactions))
	return transactions, nil
}

func getTransaction(ctx context.Context, q queryer, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, transactionSelect+"\n\tWHERE t.id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// checkTransactionRefs ensures the account and category exist and the
// category type matches the transaction type.
func checkTransactionRefs(ctx context.Context, q queryer, input *service.TransactionInput) error {
	if _, err := getAccount(ctx, q, input.AccountID); err != nil {
		return err
	}
	category, err := getCategory(ctx, q, input.CategoryID)
	if err != nil {
		return err
	}
	if category.Type != input.Type {
		return fmt.Errorf("%w: %s transaction cannot use %s category %q",
			common.ErrValidation, input.Type, category.Type, category.Name)
	}
	return nil
}
