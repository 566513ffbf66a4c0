package caches

import (
	"errors"
	"fmt"
)

// ValidationError is returned by backend constructors when they are handed an
// unusable client or configuration.
type ValidationError struct {
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("creation of cache failed for reason : %s ", ve.Reason)
}

// Is lets callers match any ValidationError with errors.Is(err, ErrValidation).
func (ve ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var (
	ErrValidation = errors.New("cache validation failed")

	// ErrNoCacheItem is returned by Read when nothing is stored under the key.
	ErrNoCacheItem = errors.New("no value found in cache")

	// ErrCorruptItem is returned by Read when a stored entry cannot be decoded
	// or fails its checksum.
	ErrCorruptItem = errors.New("cache item corrupt")

	// ErrInvalidKey is returned when a key cannot be used by the backend.
	ErrInvalidKey = errors.New("invalid cache key")
)
