package core

import (
	"errors"
	"fmt"
)

// Error kinds shared by every repository, command and history boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrNoHistory         = errors.New("no history")
	ErrStorage           = errors.New("storage failure")
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

var (
	ErrInvalidDate       = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyID           = fmt.Errorf("%w: empty id", ErrValidation)
	ErrEmptyDescription  = fmt.Errorf("%w: empty description", ErrValidation)
	ErrEmptyCategory     = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptyUser         = fmt.Errorf("%w: empty user", ErrValidation)
	ErrInvalidKind       = fmt.Errorf("%w: invalid transaction kind", ErrValidation)
	ErrDuplicateID       = fmt.Errorf("%w: duplicate transaction id", ErrValidation)
	ErrIDMismatch        = fmt.Errorf("%w: transaction id does not match target id", ErrValidation)
	ErrEmptyPeriod       = fmt.Errorf("%w: empty budget period", ErrValidation)
	ErrDescriptionLength = fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
)

// StorageError is an opaque local failure. It matches ErrStorage with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

// StorageFailure wraps err as a StorageError for op. Errors that already carry
// a known kind (not found, validation) are returned as they are.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrStorage)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStorage, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Guard runs fn and turns a panic into a StorageError so that faults never
// cross a repository or command boundary unconverted.
func Guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StorageError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}

// ErrorKind returns the error kind name used in logs and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNoHistory):
		return "no_history"
	case errors.Is(err, ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal"
	}
}
