package jobstore

import "errors"

// Sentinel errors for job store operations.
var (
	// ErrValidation indicates a malformed job (missing or unrecognized
	// fields). Never retried; surfaced to callers as a 4xx-equivalent.
	ErrValidation = errors.New("invalid job")

	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrTerminal indicates an attempted transition on a job already in a
	// terminal state. Terminal records are immutable.
	ErrTerminal = errors.New("job is in a terminal state")
)

// IsNotFound returns true if the error indicates a missing job.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if the error indicates malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
