// Package errors provides the error codes shared by the ledger sync core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Storage errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync errors
	ErrTransport        ErrorCode = "TRANSPORT_ERROR"
	ErrSyncInProgress   ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncConflict     ErrorCode = "SYNC_CONFLICT"
	ErrSyncAuthFailed   ErrorCode = "SYNC_AUTH_FAILED"
	ErrConflictResolved ErrorCode = "CONFLICT_ALREADY_RESOLVED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// Storage wraps a failure of the local durable store.
func Storage(message string, err error) *AppError {
	return Wrap(ErrStorage, message, err)
}

// Transport wraps a failure talking to the remote authority.
func Transport(message string, err error) *AppError {
	return Wrap(ErrTransport, message, err)
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}
