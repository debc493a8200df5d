package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated database in a temp directory.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func cashAccount(t *testing.T, store *SQLiteStorage) *model.Account {
	t.Helper()
	account, err := fallbackAccount(context.Background(), store.db)
	require.NoError(t, err)
	return account
}

func othersCategory(t *testing.T, store *SQLiteStorage, categoryType model.TransactionType) *model.Category {
	t.Helper()
	category, err := fallbackCategory(context.Background(), store.db, categoryType)
	require.NoError(t, err)
	return category
}

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	amount, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return amount
}

func createAccount(t *testing.T, store *SQLiteStorage, name, opening string) *model.Account {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), service.AccountInput{
		Name:           name,
		OpeningBalance: mustAmount(t, opening),
	})
	require.NoError(t, err)
	return account
}

func createCategory(t *testing.T, store *SQLiteStorage, name string, categoryType model.TransactionType) *model.Category {
	t.Helper()
	category, err := store.CreateCategory(context.Background(), service.CategoryInput{Name: name, Type: categoryType})
	require.NoError(t, err)
	return category
}

func createTransaction(t *testing.T, store *SQLiteStorage, txnType model.TransactionType, amount, accountID, categoryID string) *model.Transaction {
	t.Helper()
	txn, err := store.CreateTransaction(context.Background(), service.TransactionInput{
		Date:       time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		Amount:     mustAmount(t, amount),
		Title:      "Test " + string(txnType),
		Type:       txnType,
		CategoryID: categoryID,
		AccountID:  accountID,
	})
	require.NoError(t, err)
	return txn
}

func countDefaults(t *testing.T, store *SQLiteStorage) int {
	t.Helper()
	accounts, err := store.ListAccounts(context.Background())
	require.NoError(t, err)

	defaults := 0
	for _, a := range accounts {
		if a.IsDefault {
			defaults++
		}
	}
	return defaults
}

func TestMigrate_SeedsFallbacks(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, model.FallbackAccountName, accounts[0].Name)
	assert.True(t, accounts[0].IsDefault)
	assert.True(t, accounts[0].IsPermanent)
	assert.True(t, accounts[0].OpeningBalance.IsZero())

	for _, categoryType := range model.TransactionTypes {
		categories, err := store.ListCategories(ctx, categoryType)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, model.FallbackCategoryName, categories[0].Name)
		assert.True(t, categories[0].IsPermanent)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1, "seeds must not be duplicated")
}

func TestWrite_RollsBackOnError(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET name = 'Changed'`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, model.FallbackAccountName, cashAccount(t, store).Name)
}

func TestForeignKeysEnforced(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account := createAccount(t, store, "Bank", "0")
	others := othersCategory(t, store, model.TransactionTypeExpense)
	createTransaction(t, store, model.TransactionTypeExpense, "10", account.ID, others.ID)

	_, err := store.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, account.ID)
	assert.Error(t, err, "deleting a referenced account without reassignment must fail")
}
