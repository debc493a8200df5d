// Package testutil provides shared test helpers for packages that sit on top
// of the ledger store.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/Veraticus/ledgerkeep/internal/storage"
	"github.com/shopspring/decimal"
)

// TestDB is a migrated file-backed ledger scoped to one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Path    string
}

// SetupTestDB creates a fresh ledger in a temp directory and runs
// migrations. The database is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return &TestDB{Storage: store, Path: path, t: t}
}

// Cash returns the permanent fallback account.
func (db *TestDB) Cash() model.Account {
	db.t.Helper()
	accounts, err := db.Storage.ListAccounts(context.Background())
	if err != nil {
		db.t.Fatalf("failed to list accounts: %v", err)
	}
	for _, a := range accounts {
		if a.IsPermanent {
			return a
		}
	}
	db.t.Fatalf("no permanent account in test database")
	return model.Account{}
}

// Others returns the permanent fallback category for a transaction type.
func (db *TestDB) Others(txType model.TransactionType) model.Category {
	db.t.Helper()
	cats, err := db.Storage.ListCategories(context.Background(), txType)
	if err != nil {
		db.t.Fatalf("failed to list categories: %v", err)
	}
	for _, c := range cats {
		if c.IsPermanent {
			return c
		}
	}
	db.t.Fatalf("no permanent %s category in test database", txType)
	return model.Category{}
}

// MustAccount creates an account with the given opening balance.
func (db *TestDB) MustAccount(name, opening string) *model.Account {
	db.t.Helper()
	account, err := db.Storage.CreateAccount(context.Background(), service.AccountInput{
		Name:           name,
		OpeningBalance: db.MustAmount(opening),
	})
	if err != nil {
		db.t.Fatalf("failed to create account %q: %v", name, err)
	}
	return account
}

// MustCategory creates a category.
func (db *TestDB) MustCategory(name string, txType model.TransactionType) *model.Category {
	db.t.Helper()
	category, err := db.Storage.CreateCategory(context.Background(), service.CategoryInput{
		Name: name,
		Type: txType,
	})
	if err != nil {
		db.t.Fatalf("failed to create category %q: %v", name, err)
	}
	return category
}

// Entry describes a transaction for MustTransaction. Zero fields fall back
// to the permanent account and category and to a fixed date.
type Entry struct {
	Date       time.Time
	Title      string
	Amount     string
	Type       model.TransactionType
	AccountID  string
	CategoryID string
}

// MustTransaction records a transaction.
func (db *TestDB) MustTransaction(e Entry) *model.Transaction {
	db.t.Helper()

	if e.Type == "" {
		e.Type = model.TransactionTypeExpense
	}
	if e.AccountID == "" {
		e.AccountID = db.Cash().ID
	}
	if e.CategoryID == "" {
		e.CategoryID = db.Others(e.Type).ID
	}
	if e.Date.IsZero() {
		e.Date = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	}
	if e.Title == "" {
		e.Title = "Test " + string(e.Type)
	}

	txn, err := db.Storage.CreateTransaction(context.Background(), service.TransactionInput{
		Date:       e.Date,
		Amount:     db.MustAmount(e.Amount),
		Title:      e.Title,
		Type:       e.Type,
		AccountID:  e.AccountID,
		CategoryID: e.CategoryID,
	})
	if err != nil {
		db.t.Fatalf("failed to create transaction %q: %v", e.Title, err)
	}
	return txn
}

// MustAmount parses a decimal literal.
func (db *TestDB) MustAmount(s string) decimal.Decimal {
	db.t.Helper()
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		db.t.Fatalf("bad amount %q: %v", s, err)
	}
	return d
}
