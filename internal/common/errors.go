// Package common defines shared constants and sentinel errors used across
// the treetrack core. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// ErrCancelled marks an operation stopped by an explicit cancellation,
	// as opposed to a failure. The upload pipeline reports it for the one
	// in-flight record when the user cancels.
	ErrCancelled = errors.New("cancelled")

	// ErrNotProduced is returned by delayed observables that are read
	// before any value has ever been published to them.
	ErrNotProduced = errors.New("value not produced yet")
)

// RemoteError is an HTTP-level failure from the backend. Status carries the
// response code so callers can distinguish client faults from server faults.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
}

// Retryable reports whether the gateway may retry the request that produced
// this error. Only server-side (5xx) failures are retryable.
func (e *RemoteError) Retryable() bool {
	return e.Status >= 500
}

// LocalError is a store or codec failure on the device. Local errors never
// crash the process; callers log them and degrade to an empty result or
// skip the one affected record.
type LocalError struct {
	Code    string
	Message string
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("local error (%s): %s", e.Code, e.Message)
}
