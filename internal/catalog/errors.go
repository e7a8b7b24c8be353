package catalog

import "fmt"

// EmptyResultError is surfaced when a fetch failed and no cached data exists
// for the key, stale or otherwise. It carries the original fetch error.
type EmptyResultError struct {
	Key string
	Err error
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no channels available for %s: %v", e.Key, e.Err)
}

func (e *EmptyResultError) Unwrap() error { return e.Err }
