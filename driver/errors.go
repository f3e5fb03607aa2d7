package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document with the requested key does
	// not exist.
	ErrNotFound = errors.New("tether: document not found")

	// ErrDuplicateKey is returned when inserting a document whose key is
	// already taken.
	ErrDuplicateKey = errors.New("tether: duplicate key")

	// ErrUnsupportedFilter is returned when a filter uses an operator the
	// driver cannot evaluate.
	ErrUnsupportedFilter = errors.New("tether: unsupported filter operator")
)

// ValidationError is returned by stores that validate documents on insert
// or replace. The engine never pre-validates; it surfaces this unchanged.
type ValidationError struct {
	Collection string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tether: document for %q failed validation: %s", e.Collection, e.Reason)
}
