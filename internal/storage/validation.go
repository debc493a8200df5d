// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/ledgerkeep/internal/common"
	"github.com/Veraticus/ledgerkeep/internal/service"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID rejects empty ids before touching the database.
func validateID(id, kind string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", common.ErrValidation, kind)
	}
	return nil
}

func validateAccountInput(input *service.AccountInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return fmt.Errorf("%w: account name cannot be empty", common.ErrValidation)
	}
	return nil
}

func validateCategoryInput(input *service.CategoryInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return fmt.Errorf("%w: category name cannot be empty", common.ErrValidation)
	}
	if !input.Type.IsValid() {
		return fmt.Errorf("%w: invalid category type %q", common.ErrValidation, input.Type)
	}
	return nil
}

func validateTransactionInput(input *service.TransactionInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	switch {
	case input.Title == "":
		return fmt.Errorf("%w: transaction title cannot be empty", common.ErrValidation)
	case input.Date.IsZero():
		return fmt.Errorf("%w: transaction date is required", common.ErrValidation)
	case !input.Amount.IsPositive():
		return fmt.Errorf("%w: transaction amount must be greater than zero", common.ErrValidation)
	case !input.Type.IsValid():
		return fmt.Errorf("%w: invalid transaction type %q", common.ErrValidation, input.Type)
	}

	if err := validateID(input.AccountID, "account"); err != nil {
		return err
	}
	return validateID(input.CategoryID, "category")
}
