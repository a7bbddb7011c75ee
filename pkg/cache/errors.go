package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMiss classifies lookups for keys that are absent or expired.
	ErrMiss = errors.New("cache miss")
	// ErrBackendUnavailable classifies remote backend connectivity failures.
	ErrBackendUnavailable = errors.New("cache backend unavailable")
	// ErrInvalidArgument classifies invalid caller arguments.
	ErrInvalidArgument = errors.New("cache invalid argument")
	// ErrClosed classifies operations performed on a closed cache.
	ErrClosed = errors.New("cache closed")
)

func cacheError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
