package blobstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for blob store operations.
var (
	// ErrNotFound indicates the requested chunk does not exist.
	ErrNotFound = errors.New("chunk not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnavailable indicates the backing store is unavailable.
	ErrUnavailable = errors.New("store unavailable")
)

// StoreError wraps backend-specific errors with context.
type StoreError struct {
	// Op is the operation that failed (e.g., "Write", "Delete").
	Op string

	// Kind is the backend kind (e.g., "s3").
	Kind Kind

	// Path is the logical file identity, if applicable.
	Path string

	// Index is the chunk index, or -1 for whole-path operations.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s %s: %s[%d]: %v", e.Kind, e.Op, e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing chunk.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
