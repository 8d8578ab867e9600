package internal

import (
	"fmt"
	"time"
)

// InvalidRangeError reports unusable date-window parameters of a route.
// It is fatal for that route only.
type InvalidRangeError struct {
	Reason string
	Err    error
}

func (e *InvalidRangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid date range: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid date range: %s", e.Reason)
}

func (e *InvalidRangeError) Unwrap() error {
	return e.Err
}

// NavigationTimeoutError is returned when a page does not become interactive in time.
type NavigationTimeoutError struct {
	Url     string
	Timeout time.Duration
	Err     error
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("navigation to %s did not finish within %s", e.Url, e.Timeout)
}

func (e *NavigationTimeoutError) Unwrap() error {
	return e.Err
}

// FetchFailure wraps any unrecoverable error of a fetch session together
// with the session state it happened in.
type FetchFailure struct {
	Url   string
	State string
	Err   error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed while %s: %v", e.Url, e.State, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// ExtractionSkip describes a result node that was dropped during extraction.
// Skips are counted, never surfaced as errors.
type ExtractionSkip struct {
	Index  int
	Reason string
}

func (e *ExtractionSkip) Error() string {
	return fmt.Sprintf("node %d skipped: %s", e.Index, e.Reason)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
