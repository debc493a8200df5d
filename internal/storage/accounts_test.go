package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/model"
	"github.com/Veraticus/ledgerkeep/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createAccount(t, store, "Savings", "0")

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty name", input: ""},
		{name: "whitespace name", input: "   "},
		{name: "duplicate name", input: "Savings"},
		{name: "duplicate ignoring case", input: "cash"},
		{name: "duplicate with padding", input: "  savings "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateAccount(ctx, service.AccountInput{Name: tt.input})
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2, "rejected accounts must not be persisted")
}

func TestCreateAccount_AsDefaultSwapsDefault(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, service.AccountInput{
		Name:           "Checking",
		OpeningBalance: decimal.NewFromInt(250),
		IsDefault:      true,
	})
	require.NoError(t, err)
	assert.False(t, account.IsPermanent)

	def, err := store.GetDefaultAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.ID, def.ID)
	assert.Equal(t, 1, countDefaults(t, store))
	assert.False(t, cashAccount(t, store).IsDefault)
}

func TestSetDefaultAccount(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	checking := createAccount(t, store, "Checking", "0")
	savings := createAccount(t, store, "Savings", "0")

	err := store.SetDefaultAccount(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 1, countDefaults(t, store))

	for _, id := range []string{checking.ID, savings.ID, savings.ID, cashAccount(t, store).ID, checking.ID} {
		require.NoError(t, store.SetDefaultAccount(ctx, id))
		assert.Equal(t, 1, countDefaults(t, store))

		def, err := store.GetDefaultAccount(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, def.ID)
	}
}

func TestSetDefaultAccount_RacingDeletes(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	expense := othersCategory(t, store, model.TransactionTypeExpense)

	var accounts []*model.Account
	for _, name := range []string{"Checking", "Savings", "Card", "Travel", "Brokerage", "Wallet"} {
		a := createAccount(t, store, name, "0")
		createTransaction(t, store, model.TransactionTypeExpense, "10", a.ID, expense.ID)
		createTransaction(t, store, model.TransactionTypeExpense, "2.50", a.ID, expense.ID)
		accounts = append(accounts, a)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for round := 0; round < 4; round++ {
		for _, a := range accounts {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := store.SetDefaultAccount(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
					errs <- err
				}
			}(a.ID)
		}
	}
	for _, a := range accounts[:4] {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := store.DeleteAccount(ctx, id); err != nil {
				errs <- err
			}
		}(a.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, countDefaults(t, store))
	def, err := store.GetDefaultAccount(ctx)
	require.NoError(t, err)
	_, err = store.GetAccount(ctx, def.ID)
	require.NoError(t, err)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 12, "deleting an account never deletes its transactions")
	for _, txn := range txns {
		_, err := store.GetAccount(ctx, txn.AccountID)
		assert.NoError(t, err, "transaction %s points at a missing account", txn.ID)
	}

	for _, a := range accounts[:4] {
		_, err := store.GetAccount(ctx, a.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	}
}

func TestUpdateAccount(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cash := cashAccount(t, store)

	t.Run("permanent account can be renamed", func(t *testing.T) {
		updated, err := store.UpdateAccount(ctx, cash.ID, service.AccountInput{
			Name:           "Wallet",
			Icon:           "coins",
			OpeningBalance: decimal.NewFromInt(20),
			IsDefault:      true,
		})
		require.NoError(t, err)
		assert.Equal(t, "Wallet", updated.Name)
		assert.True(t, updated.IsPermanent)

		fallback := cashAccount(t, store)
		assert.Equal(t, cash.ID, fallback.ID, "fallback is found by flag, not by name")
	})

	t.Run("false keeps the current default", func(t *testing.T) {
		updated, err := store.UpdateAccount(ctx, cash.ID, service.AccountInput{Name: "Wallet", IsDefault: false})
		require.NoError(t, err)
		assert.True(t, updated.IsDefault)
		assert.Equal(t, 1, countDefaults(t, store))
	})

	t.Run("setting default through update swaps", func(t *testing.T) {
		other := createAccount(t, store, "Card", "0")
		updated, err := store.UpdateAccount(ctx, other.ID, service.AccountInput{Name: "Card", IsDefault: true})
		require.NoError(t, err)
		assert.True(t, updated.IsDefault)
		assert.Equal(t, 1, countDefaults(t, store))
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := store.UpdateAccount(ctx, cash.ID, service.AccountInput{Name: "card", IsDefault: false})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.UpdateAccount(ctx, "missing", service.AccountInput{Name: "Ghost"})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestUpdateAccount_KeepsDefaultSetSinceRead(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	card := createAccount(t, store, "Card", "0")
	stale, err := store.GetAccount(ctx, card.ID)
	require.NoError(t, err)
	require.False(t, stale.IsDefault)

	require.NoError(t, store.SetDefaultAccount(ctx, card.ID))

	updated, err := store.UpdateAccount(ctx, card.ID, service.AccountInput{
		Name:           "Travel card",
		Icon:           stale.Icon,
		OpeningBalance: stale.OpeningBalance,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	def, err := store.GetDefaultAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, card.ID, def.ID)
	assert.Equal(t, 1, countDefaults(t, store))
}

func TestDeleteAccount_ReassignsToCash(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	cash := cashAccount(t, store)
	bank := createAccount(t, store, "Bank", "0")
	income := othersCategory(t, store, model.TransactionTypeIncome)
	expense := othersCategory(t, store, model.TransactionTypeExpense)

	createTransaction(t, store, model.TransactionTypeIncome, "100", bank.ID, income.ID)
	createTransaction(t, store, model.TransactionTypeExpense, "40", bank.ID, expense.ID)
	createTransaction(t, store, model.TransactionTypeExpense, "5", bank.ID, expense.ID)
	createTransaction(t, store, model.TransactionTypeExpense, "7", cash.ID, expense.ID)

	result, err := store.DeleteAccount(ctx, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Moved)
	assert.Equal(t, cash.ID, result.FallbackID)
	assert.Equal(t, model.FallbackAccountName, result.FallbackName)

	_, err = store.GetAccount(ctx, bank.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := store.ListTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4, "no transaction is deleted")
	for _, txn := range all {
		assert.Equal(t, cash.ID, txn.AccountID)
	}

	balance, err := store.GetAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "48", balance.Balance.String())
}

func TestDeleteAccount_DefaultMovesToCash(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	bank := createAccount(t, store, "Bank", "0")
	require.NoError(t, store.SetDefaultAccount(ctx, bank.ID))

	_, err := store.DeleteAccount(ctx, bank.ID)
	require.NoError(t, err)

	def, err := store.GetDefaultAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, cashAccount(t, store).ID, def.ID)
	assert.Equal(t, 1, countDefaults(t, store))
}

func TestDeleteAccount_Errors(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cash := cashAccount(t, store)
	expense := othersCategory(t, store, model.TransactionTypeExpense)
	createTransaction(t, store, model.TransactionTypeExpense, "12.50", cash.ID, expense.ID)

	_, err := store.DeleteAccount(ctx, cash.ID)
	assert.ErrorIs(t, err, common.ErrPermanentRecord)

	after, err := store.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, cash.Name, after.Name)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{AccountID: cash.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	_, err = store.DeleteAccount(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.DeleteAccount(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReassignAccount_RefusesToTargetFallback(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cash := cashAccount(t, store)

	tx, err := store.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = reassignAccount(ctx, tx, cash.ID, cash.CreatedAt)
	assert.ErrorIs(t, err, common.ErrInvariantViolation)
}

func TestAccountBalance(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account := createAccount(t, store, "Checking", "1000")
	income := othersCategory(t, store, model.TransactionTypeIncome)
	expense := othersCategory(t, store, model.TransactionTypeExpense)
	createTransaction(t, store, model.TransactionTypeIncome, "500", account.ID, income.ID)
	createTransaction(t, store, model.TransactionTypeExpense, "200", account.ID, expense.ID)

	balance, err := store.GetAccountBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", balance.Income.String())
	assert.Equal(t, "200", balance.Expense.String())
	assert.Equal(t, "1300", balance.Balance.String())

	balances, err := store.ListAccountBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	for _, b := range balances {
		switch b.ID {
		case account.ID:
			assert.Equal(t, "1300", b.Balance.String())
		default:
			assert.True(t, b.Balance.IsZero())
		}
	}

	_, err = store.GetAccountBalance(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAccountBalance_NegativeOpeningAndDecimals(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	account := createAccount(t, store, "Credit", "-50.25")
	expense := othersCategory(t, store, model.TransactionTypeExpense)
	createTransaction(t, store, model.TransactionTypeExpense, "0.10", account.ID, expense.ID)
	createTransaction(t, store, model.TransactionTypeExpense, "0.20", account.ID, expense.ID)

	balance, err := store.GetAccountBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "-50.55", balance.Balance.String())
}
