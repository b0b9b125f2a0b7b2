package weather

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no data exists for the requested
// city or date.
var ErrNotFound = errors.New("no weather data found")

// UpstreamError reports a transport failure or non-success status from the
// weather provider.
type UpstreamError struct {
	Kind       Kind
	City       string
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s %s: status %d: %v", e.Kind, e.City, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s %s: %v", e.Kind, e.City, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError reports a store write or commit failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
