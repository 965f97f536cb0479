// Package provider defines the live-source abstraction used by the fetch
// pipeline: a Source retrieves one raw series from one upstream, and the
// Registry orders the sources available for each series.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Source fetches one raw series from one upstream in a single attempt.
// Implementations must not retry.
type Source interface {
	// Name identifies the upstream in logs and metrics, e.g. "eurostat".
	Name() string

	// Series returns the series this source provides.
	Series() SeriesKey

	// Fetch retrieves and parses the upstream document. Transport failures,
	// non-2xx responses (*HTTPError) and unexpected shapes (*ParseError) are
	// all returned as errors.
	Fetch(ctx context.Context) (*Raw, error)
}

// ParseError is returned when a document does not have the expected shape.
type ParseError struct {
	Source string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SourceUnavailableError is returned when every live source and the offline
// dataset failed for a series.
type SourceUnavailableError struct {
	Series SeriesKey
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("series %q unavailable: no live source or offline dataset: %v", e.Series, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// HTTPError is returned for non-2xx upstream responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Calibration failures. Both are recovered by falling back to default
// parameters.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNumericalFailure = errors.New("numerical failure")
)

// ErrDuplicateSource is returned when a source name is registered twice for
// the same series.
type ErrDuplicateSource struct {
	Series SeriesKey
	Name   string
}

func (e *ErrDuplicateSource) Error() string {
	return fmt.Sprintf("source %q already registered for series %q", e.Name, e.Series)
}
