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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, icon, opening_balance, is_default, is_permanent, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		account model.Account
		opening string
	)
	if err := row.Scan(
		&account.ID, &account.Name, &account.Icon, &opening,
		&account.IsDefault, &account.IsPermanent, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(opening)
	if err != nil {
		return nil, fmt.Errorf("invalid opening balance %q for account %s: %w", opening, account.ID, err)
	}
	account.OpeningBalance = balance
	return &account, nil
}

// CreateAccount creates a new account. Making it the default clears the
// previous default in the same transaction.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, input service.AccountInput) (*model.Account, error) {
	if err := validateAccountInput(&input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &model.Account{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Icon:           input.Icon,
		OpeningBalance: input.OpeningBalance,
		IsDefault:      input.IsDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		if err := ensureAccountNameFree(ctx, tx, account.Name, ""); err != nil {
			return err
		}
		if account.IsDefault {
			if err := clearDefaultAccount(ctx, tx, now); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, name, icon, opening_balance, is_default, is_permanent, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			account.ID, account.Name, account.Icon, account.OpeningBalance.String(),
			account.IsDefault, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created account", "id", account.ID, "name", account.Name, "default", account.IsDefault)
	return account, nil
}

// UpdateAccount edits name, icon, opening balance and default flag.
// IsDefault can only promote: false keeps whatever flag the account has when
// the write runs, so a default set elsewhere in the meantime survives.
// Permanent accounts may be edited; they just cannot be deleted.
func (s *SQLiteStorage) UpdateAccount(ctx context.Context, id string, input service.AccountInput) (*model.Account, error) {
	if err := validateID(id, "account"); err != nil {
		return nil, err
	}
	if err := validateAccountInput(&input); err != nil {
		return nil, err
	}

	var updated *model.Account
	err := s.write(ctx, func(tx *sql.Tx) error {
		existing, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.IsDefault {
			input.IsDefault = true
		}
		if err := ensureAccountNameFree(ctx, tx, input.Name, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		if input.IsDefault && !existing.IsDefault {
			if err := clearDefaultAccount(ctx, tx, now); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET name = ?, icon = ?, opening_balance = ?, is_default = ?, updated_at = ?
			WHERE id = ?`,
			input.Name, input.Icon, input.OpeningBalance.String(), input.IsDefault, now, id,
		); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		existing.Name = input.Name
		existing.Icon = input.Icon
		existing.OpeningBalance = input.OpeningBalance
		existing.IsDefault = input.IsDefault
		existing.UpdatedAt = now
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("updated account", "id", id, "name", updated.Name)
	return updated, nil
}

// DeleteAccount moves the account's transactions to the permanent fallback
// account and removes it. A deleted default hands the default flag to the
// fallback. Everything happens in one transaction.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, id string) (*service.ReassignResult, error) {
	if err := validateID(id, "account"); err != nil {
		return nil, err
	}

	var result *service.ReassignResult
	err := s.write(ctx, func(tx *sql.Tx) error {
		existing, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.IsPermanent {
			return fmt.Errorf("%w: account %q", common.ErrPermanentRecord, existing.Name)
		}

		now := time.Now().UTC()
		result, err = reassignAccount(ctx, tx, id, now)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		if existing.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ?`,
				now, result.FallbackID,
			); err != nil {
				return fmt.Errorf("failed to move default account: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("deleted account", "id", id, "moved_transactions", result.Moved, "fallback", result.FallbackName)
	return result, nil
}

// SetDefaultAccount makes id the single default account.
func (s *SQLiteStorage) SetDefaultAccount(ctx context.Context, id string) error {
	if err := validateID(id, "account"); err != nil {
		return err
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		existing, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.IsDefault {
			return nil
		}

		now := time.Now().UTC()
		if err := clearDefaultAccount(ctx, tx, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ?`, now, id,
		); err != nil {
			return fmt.Errorf("failed to set default account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("set default account", "id", id)
	return nil
}

// GetAccount returns a single account.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "account"); err != nil {
		return nil, err
	}
	return getAccount(ctx, s.db, id)
}

// GetDefaultAccount returns the account new transactions use by default.
func (s *SQLiteStorage) GetDefaultAccount(ctx context.Context) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_default = 1`)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no default account", common.ErrInvariantViolation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query default account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts, the permanent one first.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listAccounts(ctx, s.db)
}

func getAccount(ctx context.Context, q queryer, id string) (*model.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

func listAccounts(ctx context.Context, q queryer) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY is_permanent DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	slog.Debug("retrieved accounts", "count", len(accounts))
	return accounts, nil
}

func ensureAccountNameFree(ctx context.Context, q queryer, name, excludeID string) error {
	var count int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE name = ? AND id != ?`, name, excludeID,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to check account name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: an account named %q already exists", common.ErrValidation, name)
	}
	return nil
}

func clearDefaultAccount(ctx context.Context, tx *sql.Tx, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0, updated_at = ? WHERE is_default = 1`, now,
	); err != nil {
		return fmt.Errorf("failed to clear default account: %w", err)
	}
	return nil
}
