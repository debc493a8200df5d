package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/shopspring/decimal"
)

// Snapshot captures accounts, categories, transactions and preferences in a
// single read, so every captured reference resolves within the snapshot.
func (s *SQLiteStorage) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		Format:   model.SnapshotFormat,
		Version:  model.SnapshotVersion,
		Settings: make(map[string]string),
	}

	err := s.read(ctx, func(tx *sql.Tx) error {
		version, err := schemaVersion(ctx, tx)
		if err != nil {
			return err
		}
		snap.SchemaVersion = version

		accounts, err := listAccounts(ctx, tx)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			snap.Accounts = append(snap.Accounts, model.SnapshotAccount{
				ID:             a.ID,
				Name:           a.Name,
				Icon:           a.Icon,
				OpeningBalance: a.OpeningBalance.String(),
				IsDefault:      a.IsDefault,
				IsPermanent:    a.IsPermanent,
				CreatedAt:      a.CreatedAt,
				UpdatedAt:      a.UpdatedAt,
			})
		}

		categories, err := listCategories(ctx, tx)
		if err != nil {
			return err
		}
		for _, c := range categories {
			snap.Categories = append(snap.Categories, model.SnapshotCategory{
				ID:          c.ID,
				Name:        c.Name,
				Icon:        c.Icon,
				Type:        c.Type,
				IsPermanent: c.IsPermanent,
				CreatedAt:   c.CreatedAt,
				UpdatedAt:   c.UpdatedAt,
			})
		}

		transactions, err := listTransactions(ctx, tx, service.TransactionFilter{})
		if err != nil {
			return err
		}
		for _, t := range transactions {
			snap.Transactions = append(snap.Transactions, model.SnapshotEntry{
				ID:          t.ID,
				Date:        t.Date,
				Title:       t.Title,
				Description: t.Description,
				Amount:      t.Amount.String(),
				Type:        t.Type,
				CategoryID:  t.CategoryID,
				AccountID:   t.AccountID,
				CreatedAt:   t.CreatedAt,
				UpdatedAt:   t.UpdatedAt,
			})
		}

		settings, err := listSettings(ctx, tx)
		if err != nil {
			return err
		}
		for k, v := range settings {
			if !model.IsBookkeepingSetting(k) {
				snap.Settings[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}

	snap.CreatedAt = time.Now().UTC()
	slog.Debug("captured snapshot",
		"accounts", len(snap.Accounts),
		"categories", len(snap.Categories),
		"transactions", len(snap.Transactions))
	return snap, nil
}

// RestoreSnapshot replaces every ledger row and preference with the
// snapshot's contents in one transaction. Scheduler bookkeeping is kept.
// progress, if set, is called after each restored row.
func (s *SQLiteStorage) RestoreSnapshot(ctx context.Context, snap *model.Snapshot, progress func(done, total int)) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParameter)
	}
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}

	total := snap.RowCount()
	done := 0
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM transactions`,
			`DELETE FROM categories`,
			`DELETE FROM accounts`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear ledger: %w", err)
			}
		}

		for _, a := range snap.Accounts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (id, name, icon, opening_balance, is_default, is_permanent, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, a.Name, a.Icon, a.OpeningBalance, a.IsDefault, a.IsPermanent, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to restore account %s: %w", a.ID, err)
			}
			step()
		}

		for _, c := range snap.Categories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, icon, type, is_permanent, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Icon, c.Type, c.IsPermanent, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to restore category %s: %w", c.ID, err)
			}
			step()
		}

		for _, t := range snap.Transactions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transactions
				(id, date, title, description, amount, type, category_id, account_id, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.Date.UTC(), t.Title, t.Description, t.Amount, t.Type,
				t.CategoryID, t.AccountID, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to restore transaction %s: %w", t.ID, err)
			}
			step()
		}

		return restorePreferences(ctx, tx, snap.Settings)
	})
	if err != nil {
		return err
	}

	slog.Info("restored snapshot",
		"created_at", snap.CreatedAt,
		"accounts", len(snap.Accounts),
		"categories", len(snap.Categories),
		"transactions", len(snap.Transactions))
	return nil
}

func restorePreferences(ctx context.Context, tx *sql.Tx, settings map[string]string) error {
	current, err := listSettings(ctx, tx)
	if err != nil {
		return err
	}
	for key := range current {
		if model.IsBookkeepingSetting(key) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to clear setting %s: %w", key, err)
		}
	}

	now := time.Now().UTC()
	for key, value := range settings {
		if model.IsBookkeepingSetting(key) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)`, key, value, now,
		); err != nil {
			return fmt.Errorf("failed to restore setting %s: %w", key, err)
		}
	}
	return nil
}

// ValidateSnapshot checks that a snapshot satisfies the ledger invariants
// before it replaces anything.
func ValidateSnapshot(snap *model.Snapshot) error {
	accounts := make(map[string]bool, len(snap.Accounts))
	accountNames := make(map[string]bool, len(snap.Accounts))
	defaults, permanentAccounts := 0, 0
	for _, a := range snap.Accounts {
		name := strings.ToLower(strings.TrimSpace(a.Name))
		switch {
		case a.ID == "" || name == "":
			return fmt.Errorf("%w: snapshot account without id or name", common.ErrValidation)
		case accounts[a.ID]:
			return fmt.Errorf("%w: duplicate account id %s", common.ErrValidation, a.ID)
		case accountNames[name]:
			return fmt.Errorf("%w: duplicate account name %q", common.ErrValidation, a.Name)
		}
		if _, err := decimal.NewFromString(a.OpeningBalance); err != nil {
			return fmt.Errorf("%w: account %s opening balance %q", common.ErrValidation, a.ID, a.OpeningBalance)
		}
		accounts[a.ID] = true
		accountNames[name] = true
		if a.IsDefault {
			defaults++
		}
		if a.IsPermanent {
			permanentAccounts++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("%w: snapshot has %d default accounts", common.ErrInvariantViolation, defaults)
	}
	if permanentAccounts != 1 {
		return fmt.Errorf("%w: snapshot has %d permanent accounts", common.ErrInvariantViolation, permanentAccounts)
	}

	categories := make(map[string]model.TransactionType, len(snap.Categories))
	categoryNames := make(map[string]bool, len(snap.Categories))
	permanentCategories := make(map[model.TransactionType]int)
	for _, c := range snap.Categories {
		name := string(c.Type) + "/" + strings.ToLower(strings.TrimSpace(c.Name))
		switch {
		case c.ID == "" || strings.TrimSpace(c.Name) == "":
			return fmt.Errorf("%w: snapshot category without id or name", common.ErrValidation)
		case !c.Type.IsValid():
			return fmt.Errorf("%w: category %s has type %q", common.ErrValidation, c.ID, c.Type)
		case categories[c.ID] != "":
			return fmt.Errorf("%w: duplicate category id %s", common.ErrValidation, c.ID)
		case categoryNames[name]:
			return fmt.Errorf("%w: duplicate %s category %q", common.ErrValidation, c.Type, c.Name)
		}
		categories[c.ID] = c.Type
		categoryNames[name] = true
		if c.IsPermanent {
			permanentCategories[c.Type]++
		}
	}
	for _, t := range model.TransactionTypes {
		if permanentCategories[t] != 1 {
			return fmt.Errorf("%w: snapshot has %d permanent %s categories",
				common.ErrInvariantViolation, permanentCategories[t], t)
		}
	}

	seen := make(map[string]bool, len(snap.Transactions))
	for _, t := range snap.Transactions {
		if t.ID == "" || seen[t.ID] {
			return fmt.Errorf("%w: missing or duplicate transaction id %q", common.ErrValidation, t.ID)
		}
		seen[t.ID] = true

		amount, err := decimal.NewFromString(t.Amount)
		if err != nil || !amount.IsPositive() {
			return fmt.Errorf("%w: transaction %s amount %q", common.ErrValidation, t.ID, t.Amount)
		}
		if !t.Type.IsValid() {
			return fmt.Errorf("%w: transaction %s type %q", common.ErrValidation, t.ID, t.Type)
		}
		if !accounts[t.AccountID] {
			return fmt.Errorf("%w: transaction %s references missing account %s",
				common.ErrInvariantViolation, t.ID, t.AccountID)
		}
		categoryType, ok := categories[t.CategoryID]
		if !ok {
			return fmt.Errorf("%w: transaction %s references missing category %s",
				common.ErrInvariantViolation, t.ID, t.CategoryID)
		}
		if categoryType != t.Type {
			return fmt.Errorf("%w: %s transaction %s uses %s category",
				common.ErrValidation, t.Type, t.ID, categoryType)
		}
	}
	return nil
}
