package marketcache

import (
	"errors"
	"fmt"
)

// Error kinds. Every fault the cache swallows is reported as an *OpError
// whose Kind is one of these.
var (
	// ErrStorageUnavailable means the storage backend could not be opened.
	// It is the only error surfaced to callers, once, from Init.
	ErrStorageUnavailable = errors.New("cache storage unavailable")
	// ErrRead covers failed lookups, enumerations and undecodable entries.
	ErrRead = errors.New("cache read failure")
	// ErrWrite covers failed writes, deletes and unencodable values.
	ErrWrite = errors.New("cache write failure")
)

// OpError describes a cache-internal failure. errors.Is matches both the
// Kind and the underlying cause.
type OpError struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s %q: %v: %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("cache %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both Kind and Err to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// kindLabel is the metrics label for an error kind.
func kindLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrStorageUnavailable):
		return "unavailable"
	case errors.Is(kind, ErrRead):
		return "read"
	case errors.Is(kind, ErrWrite):
		return "write"
	default:
		return "unknown"
	}
}
