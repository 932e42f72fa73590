package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/store"
)

// Error handling principles:
// 1. Expected conditions are sentinel errors (ErrTaskNotFound) or
//    *domain.ValidationError values, checked with errors.Is.
// 2. Record store failures are wrapped in *StorageError.
// 3. A failed enqueue after a committed write is a *QueueError returned
//    together with the committed task.
// 4. Cache failures never surface; see cache.Policy.
var (
	// ErrTaskNotFound indicates the task does not exist or has been deleted.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = domain.ErrTaskNotFound

	// ErrPreconditionFailed indicates a conditional update found the task
	// modified after the caller's IfUnmodifiedSince instant. Nothing was written.
	ErrPreconditionFailed = domain.ErrStaleUpdate
)

// StorageError reports a failure of the record store.
type StorageError struct {
	// Operation is the engine operation that failed (e.g. "create", "update")
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("task storage %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// QueueError reports that a write committed but its follow-up job could not
// be enqueued. The accompanying task reflects the committed state.
type QueueError struct {
	Operation string
	TaskID    uuid.UUID
	Err       error
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	return fmt.Sprintf("task %s committed but %s failed: %v", e.TaskID, e.Operation, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the task does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}

// IsStorage reports whether err is a record store failure.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsQueue reports whether err is a post-commit enqueue failure.
func IsQueue(err error) bool {
	var qe *QueueError
	return errors.As(err, &qe)
}

// mapStoreError translates errors coming out of a store call or transaction
// into the engine's error kinds.
func mapStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, ErrPreconditionFailed):
		return err
	case errors.Is(err, store.ErrInvalidEntity):
		return domain.NewValidationError("user_id", "does not reference an existing user", err)
	case errors.As(err, &se):
		return err
	default:
		return &StorageError{Operation: operation, Err: err}
	}
}
