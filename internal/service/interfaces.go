// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/shopspring/decimal"
)

// AccountInput carries the editable fields of an account.
type AccountInput struct {
	OpeningBalance decimal.Decimal
	Name           string
	Icon           string
	IsDefault      bool
}

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name string
	Icon string
	Type model.TransactionType
}

// TransactionInput carries the editable fields of a transaction.
type TransactionInput struct {
	Date        time.Time
	Amount      decimal.Decimal
	Title       string
	Description string
	Type        model.TransactionType
	CategoryID  string
	AccountID   string
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	AccountID  string
	CategoryID string
	Type       model.TransactionType
	Limit      int
}

// ReassignResult reports where the transactions of a deleted record went.
type ReassignResult struct {
	FallbackID   string
	FallbackName string
	Moved        int
}

// AccountStore manages accounts and their derived balances.
type AccountStore interface {
	CreateAccount(ctx context.Context, input AccountInput) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, input AccountInput) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) (*ReassignResult, error)
	SetDefaultAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetDefaultAccount(ctx context.Context) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccountBalance(ctx context.Context, id string) (*model.AccountBalance, error)
	ListAccountBalances(ctx context.Context) ([]model.AccountBalance, error)
}

// CategoryStore manages categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, input CategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) (*ReassignResult, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context, categoryType model.TransactionType) ([]model.Category, error)
}

// TransactionStore manages ledger entries.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, input TransactionInput) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, input TransactionInput) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
}

// SettingsStore is the persisted key/value store behind user preferences
// and maintenance bookkeeping.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

// SnapshotStore captures and replaces the whole ledger atomically.
type SnapshotStore interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	RestoreSnapshot(ctx context.Context, snapshot *model.Snapshot, progress func(done, total int)) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	AccountStore
	CategoryStore
	TransactionStore
	SettingsStore
	SnapshotStore

	Migrate(ctx context.Context) error
	Close() error
}
