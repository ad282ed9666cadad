package wizard

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recoverable wizard conditions. None of them is
// fatal: every one leaves PipelineState in its last consistent shape and
// the user may retry or reset.
var (
	// ErrNoSelection signals that the user tried to advance without the
	// input the current stage requires.
	ErrNoSelection = errors.New("required selection is missing")

	// ErrNotYetSupported signals a recognized sport without an available
	// data loader.
	ErrNotYetSupported = errors.New("sport is not yet supported")

	// ErrFetchInProgress signals a re-entrant trigger while the stage's
	// single-flight slot is held.
	ErrFetchInProgress = errors.New("fetch already in progress")

	// ErrInvalidConfiguration signals an extraction configuration that
	// fails validation, e.g. a threshold outside [0, 1].
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownSport signals a sport value outside the recognized set.
	ErrUnknownSport = errors.New("unknown sport")
)

// FetchError wraps a failed external call. The owning stage is left in its
// pre-fetch state so the same transition may be retried.
type FetchError struct {
	Stage Stage
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch for stage %s failed: %v", e.Stage, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}
