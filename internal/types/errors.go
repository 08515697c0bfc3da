package types

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks a text-generation failure that may succeed when retried
// later. Adapters wrap it; callers match with errors.Is.
var ErrRateLimited = errors.New("rate limited")

const (
	KindParse  = "ParseError"
	KindFormat = "FormatError"
)

// ParseError reports a malformed timecode or duration string.
type ParseError struct {
	Kind  string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = KindParse
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", kind, e.Input, e.Err)
	}
	return fmt.Sprintf("%s: %q", kind, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ShapeError reports an analysis result that matches no known service shape.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string { return "unrecognized analysis result: " + e.Reason }

// RewriteTransientError is returned once retries for a rate-limited interval are
// exhausted.
type RewriteTransientError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *RewriteTransientError) Error() string {
	return fmt.Sprintf("rewrite interval %d: still rate limited after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *RewriteTransientError) Unwrap() error { return e.Err }

// RewriteFailure is a non-retryable, interval-local rewrite error.
type RewriteFailure struct {
	Index int
	Err   error
}

func (e *RewriteFailure) Error() string {
	return fmt.Sprintf("rewrite interval %d: %v", e.Index, e.Err)
}

func (e *RewriteFailure) Unwrap() error { return e.Err }

// CancelledError is returned when the caller aborts between intervals.
type CancelledError struct {
	Completed int
	Total     int
	Err       error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("narration cancelled after %d of %d intervals: %v", e.Completed, e.Total, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
