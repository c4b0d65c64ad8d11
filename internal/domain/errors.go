package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ProviderError is a failure from a remote text-generation provider.
// Transient errors (throttling, timeouts, 5xx) are retryable; permanent
// errors (auth, malformed request) are not.
type ProviderError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: %s error: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewTransientError wraps err as a retryable provider failure.
func NewTransientError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Transient: true, Err: err}
}

// NewPermanentError wraps err as a non-retryable provider failure.
func NewPermanentError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// StoreError is a persistence layer failure. State cannot be safely
// continued without durable checkpoints, so these are fatal to the session.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
