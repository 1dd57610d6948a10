package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("record not found")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrIOFailure          = errors.New("storage i/o failure")
	ErrReadOnly           = errors.New("repository is in read-only mode")
	ErrInvalidID          = errors.New("invalid record id")
)

// StorageError describes a failed storage operation.
// It matches errors.Is against both its Kind and the underlying cause.
type StorageError struct {
	Op         string
	Collection string
	ID         string
	Kind       error
	Err        error
}

func (e *StorageError) Error() string {
	msg := e.Op
	if e.Collection != "" {
		msg += " " + e.Collection
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" %q", e.ID)
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil && e.Err != e.Kind {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewStorageError builds a StorageError; err may be nil when kind says it all.
func NewStorageError(op, collection, id string, kind, err error) error {
	return &StorageError{Op: op, Collection: collection, ID: id, Kind: kind, Err: err}
}
