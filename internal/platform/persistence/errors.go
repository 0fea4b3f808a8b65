package persistence

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories, sessions and the services built
// on them. Callers test with errors.Is; services wrap them with context.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrInvalid    = errors.New("invalid input")
	ErrConstraint = errors.New("constraint violation")
	ErrStorage    = errors.New("storage failure")

	ErrDetached              = errors.New("entity is not tracked by this unit of work")
	ErrTransactionInProgress = errors.New("transaction already in progress")
	ErrNoTransaction         = errors.New("no transaction in progress")
	ErrClosed                = errors.New("unit of work is closed")
)

// StorageError reports a failed read or commit against the store. It matches
// ErrStorage with errors.Is and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
