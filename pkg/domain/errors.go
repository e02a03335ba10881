package domain

import (
	"errors"
	"fmt"
)

// UserFailureError is a failure the user can correct. Its message is shown verbatim.
type UserFailureError struct {
	Message string
}

func (e UserFailureError) Error() string { return e.Message }

// UserFailuref builds a UserFailureError from a format string.
func UserFailuref(format string, args ...any) error {
	return UserFailureError{Message: fmt.Sprintf(format, args...)}
}

// IsUserFailure reports whether err wraps a UserFailureError.
func IsUserFailure(err error) bool {
	var uf UserFailureError
	return errors.As(err, &uf)
}

// ErrNotFound is returned when a record referenced by id does not exist.
type ErrNotFound struct {
	Entity RecordKind
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StaleModificationError signals an optimistic update against an outdated version.
type StaleModificationError struct {
	Entity     RecordKind
	Identifier string
}

func (e StaleModificationError) Error() string {
	return fmt.Sprintf("%s '%s' has been modified in the meantime. Reopen it and repeat your changes.", e.Entity, e.Identifier)
}

// FlushError reports a transaction that committed in memory while writing
// it to durable storage failed. The change stays visible and the store
// writes it again with its next commit.
type FlushError struct {
	Err error
}

func (e FlushError) Error() string { return "committed but not persisted: " + e.Err.Error() }

func (e FlushError) Unwrap() error { return e.Err }

// IsFlushFailure reports whether err wraps a FlushError.
func IsFlushFailure(err error) bool {
	var fe FlushError
	return errors.As(err, &fe)
}
