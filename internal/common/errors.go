// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Ledger errors.
	ErrNotFound           = errors.New("not found")
	ErrPermanentRecord    = errors.New("record is permanent and cannot be deleted")
	ErrValidation         = errors.New("validation failed")
	ErrInvariantViolation = errors.New("invariant violation")

	// Backup errors.
	ErrBackupIO = errors.New("backup I/O failed")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// BackupIOError describes a failed snapshot write, copy or read.
type BackupIOError struct {
	Err  error
	Op   string
	Path string
}

func (e *BackupIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s %s: %v", ErrBackupIO, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrBackupIO, e.Op, e.Err)
}

func (e *BackupIOError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrBackupIO) match any BackupIOError.
func (e *BackupIOError) Is(target error) bool {
	return target == ErrBackupIO
}

// NewBackupIOError wraps err as a BackupIOError for the given operation.
func NewBackupIOError(op, path string, err error) error {
	return &BackupIOError{Op: op, Path: path, Err: err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Explain wraps err in a UserError whose message matches its category.
// Errors outside the ledger taxonomy are returned unchanged.
func Explain(err error) error {
	var userErr *UserError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &userErr):
		return err
	case errors.Is(err, ErrPermanentRecord):
		return NewUserError("this record is built in and can only be renamed", err)
	case errors.Is(err, ErrNotFound):
		return NewUserError("no such record", err)
	case errors.Is(err, ErrValidation):
		return NewUserError("invalid input", err)
	case errors.Is(err, ErrInvariantViolation):
		return NewUserError("the ledger would become inconsistent", err)
	case errors.Is(err, ErrBackupIO):
		return NewUserError("backup failed", err)
	}
	return err
}

// IsRetryable determines if a failed maintenance run should simply be
// retried on the next trigger.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackupIO) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
