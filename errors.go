package gofetchcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLocator is returned when a locator cannot be parsed or does not
	// yield a storage key. No I/O is attempted.
	ErrInvalidLocator = errors.New("invalid locator")

	// ErrNetworkUnreachable is returned when the remote host could not be reached.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrTimeout is returned when a fetch did not complete in time.
	ErrTimeout = errors.New("fetch timed out")

	// ErrBodyTooLarge is returned when a response exceeds HTTPTransport.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
)

// ServerError is returned when the remote answered with a non-success status.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server responded with status %d", e.StatusCode)
}

// DecodeError reports a stored entry that exists but could not be read back.
// FetchCache.Get never returns it; it evicts the entry and fetches again.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode cache entry %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IOError reports a durable storage failure other than an unreadable entry.
type IOError struct {
	Op  string
	Key string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func invalidLocator(locator string, reason error) error {
	return fmt.Errorf("%w %q: %v", ErrInvalidLocator, locator, reason)
}
