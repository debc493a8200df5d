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
)

const categoryColumns = `id, name, icon, type, is_permanent, created_at, updated_at`

func scanCategory(row rowScanner) (*model.Category, error) {
	var cat model.Category
	if err := row.Scan(
		&cat.ID, &cat.Name, &cat.Icon, &cat.Type, &cat.IsPermanent, &cat.CreatedAt, &cat.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cat, nil
}

// ListCategories returns categories, optionally restricted to one type.
// An empty type returns every category.
func (s *SQLiteStorage) ListCategories(ctx context.Context, categoryType model.TransactionType) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if categoryType != "" {
		if !categoryType.IsValid() {
			return nil, fmt.Errorf("%w: invalid category type %q", common.ErrValidation, categoryType)
		}
		query += ` WHERE type = ?`
		args = append(args, categoryType)
	}
	query += ` ORDER BY type DESC, is_permanent, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories), "type", categoryType)
	return categories, nil
}

// GetCategory returns a category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "category"); err != nil {
		return nil, err
	}
	return getCategory(ctx, s.db, id)
}

// CreateCategory creates a new category. Names are unique within a type.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, input service.CategoryInput) (*model.Category, error) {
	if err := validateCategoryInput(&input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &model.Category{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Icon:      input.Icon,
		Type:      input.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.write(ctx, func(tx *sql.Tx) error {
		if err := ensureCategoryNameFree(ctx, tx, category.Name, category.Type, ""); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, icon, type, is_permanent, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			category.ID, category.Name, category.Icon, category.Type, now, now,
		); err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created new category", "name", category.Name, "type", category.Type, "id", category.ID)
	return category, nil
}

// UpdateCategory edits a category's name, icon and, while nothing uses it,
// its type.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, id string, input service.CategoryInput) (*model.Category, error) {
	if err := validateID(id, "category"); err != nil {
		return nil, err
	}
	if err := validateCategoryInput(&input); err != nil {
		return nil, err
	}

	var updated *model.Category
	err := s.write(ctx, func(tx *sql.Tx) error {
		existing, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}

		if input.Type != existing.Type {
			if existing.IsPermanent {
				return fmt.Errorf("%w: the type of %q cannot change", common.ErrValidation, existing.Name)
			}
			var used int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id,
			).Scan(&used); err != nil {
				return fmt.Errorf("failed to count category transactions: %w", err)
			}
			if used > 0 {
				return fmt.Errorf("%w: category %q has %d transactions and cannot change type",
					common.ErrValidation, existing.Name, used)
			}
		}

		if err := ensureCategoryNameFree(ctx, tx, input.Name, input.Type, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, icon = ?, type = ?, updated_at = ? WHERE id = ?`,
			input.Name, input.Icon, input.Type, now, id,
		); err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}

		existing.Name = input.Name
		existing.Icon = input.Icon
		existing.Type = input.Type
		existing.UpdatedAt = now
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("updated category", "id", id, "name", updated.Name)
	return updated, nil
}

// DeleteCategory moves the category's transactions to the permanent
// "Others" category of the same type, then removes it.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id string) (*service.ReassignResult, error) {
	if err := validateID(id, "category"); err != nil {
		return nil, err
	}

	var result *service.ReassignResult
	err := s.write(ctx, func(tx *sql.Tx) error {
		existing, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.IsPermanent {
			return fmt.Errorf("%w: category %q (%s)", common.ErrPermanentRecord, existing.Name, existing.Type)
		}

		result, err = reassignCategory(ctx, tx, id, existing.Type, time.Now().UTC())
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("deleted category", "id", id, "moved_transactions", result.Moved)
	return result, nil
}

func getCategory(ctx context.Context, q queryer, id string) (*model.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

func listCategories(ctx context.Context, q queryer) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY type DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}
	return categories, rows.Err()
}

func ensureCategoryNameFree(ctx context.Context, q queryer, name string, categoryType model.TransactionType, excludeID string) error {
	var count int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE name = ? AND type = ? AND id != ?`,
		name, categoryType, excludeID,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to check category name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: a %s category named %q already exists", common.ErrValidation, categoryType, name)
	}
	return nil
}
