package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
)

// fallbackAccount returns the permanent account that absorbs the
// transactions of deleted accounts.
func fallbackAccount(ctx context.Context, q queryer) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_permanent = 1`)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no permanent fallback account", common.ErrInvariantViolation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback account: %w", err)
	}
	return account, nil
}

// fallbackCategory returns the permanent category of the given type.
func fallbackCategory(ctx context.Context, q queryer, categoryType model.TransactionType) (*model.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE is_permanent = 1 AND type = ?`, categoryType)
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no permanent fallback %s category", common.ErrInvariantViolation, categoryType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback category: %w", err)
	}
	return category, nil
}

// reassignAccount points every transaction of account id at the fallback
// account. It must run in the same transaction as the delete.
func reassignAccount(ctx context.Context, tx *sql.Tx, id string, now time.Time) (*service.ReassignResult, error) {
	fallback, err := fallbackAccount(ctx, tx)
	if err != nil {
		return nil, err
	}
	if fallback.ID == id {
		return nil, fmt.Errorf("%w: account %q is the reassignment fallback", common.ErrInvariantViolation, fallback.Name)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, updated_at = ? WHERE account_id = ?`,
		fallback.ID, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reassign account transactions: %w", err)
	}

	moved, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to count reassigned transactions: %w", err)
	}

	slog.Debug("reassigned transactions", "from_account", id, "to_account", fallback.ID, "count", moved)
	return &service.ReassignResult{
		FallbackID:   fallback.ID,
		FallbackName: fallback.Name,
		Moved:        int(moved),
	}, nil
}

// reassignCategory points every transaction of category id at the fallback
// category of the same type.
func reassignCategory(ctx context.Context, tx *sql.Tx, id string, categoryType model.TransactionType, now time.Time) (*service.ReassignResult, error) {
	fallback, err := fallbackCategory(ctx, tx, categoryType)
	if err != nil {
		return nil, err
	}
	if fallback.ID == id {
		return nil, fmt.Errorf("%w: category %q is the %s reassignment fallback",
			common.ErrInvariantViolation, fallback.Name, categoryType)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, updated_at = ? WHERE category_id = ?`,
		fallback.ID, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reassign category transactions: %w", err)
	}

	moved, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to count reassigned transactions: %w", err)
	}

	slog.Debug("reassigned transactions", "from_category", id, "to_category", fallback.ID, "count", moved)
	return &service.ReassignResult{
		FallbackID:   fallback.ID,
		FallbackName: fallback.Name,
		Moved:        int(moved),
	}, nil
}
