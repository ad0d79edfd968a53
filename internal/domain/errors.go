package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the acquisition pipeline and its collaborators.
// Every stage failure maps to exactly one of these so callers can treat
// any of them as "this paper didn't work out, draw another".
var (
	// ErrNotFound indicates an authoritative not-found from the archive
	// (e.g. a sequence number past the end of a year). Never retried.
	ErrNotFound = errors.New("not found")

	// ErrRenderFailed indicates the PDF could not be fetched or its
	// first page could not be rasterized.
	ErrRenderFailed = errors.New("render failed")

	// ErrNoAbstract indicates the layout heuristic found no abstract
	// region on the page. This is an expected outcome for scanned or
	// multi-column documents, not an exceptional condition.
	ErrNoAbstract = errors.New("no abstract region found")

	// ErrNoTitle indicates the archive landing page yielded no title.
	ErrNoTitle = errors.New("no title found")

	// ErrUnavailable indicates that repeated attempts to serve a paper
	// all failed; callers should report a transient condition upstream.
	ErrUnavailable = errors.New("no paper available")

	// ErrRateLimited indicates an external API rejected us for pacing.
	ErrRateLimited = errors.New("rate limited")
)

// StageError attributes a pipeline failure to the stage that produced it.
type StageError struct {
	Stage string
	Key   PaperKey
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: paper %s: %v", e.Stage, e.Key, e.Err)
}

// Unwrap returns the underlying stage sentinel for use with errors.Is.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage name and paper key.
func NewStageError(stage string, key PaperKey, err error) *StageError {
	return &StageError{Stage: stage, Key: key, Err: err}
}

// ExternalAPIError carries details of a non-success response from an
// external citation or archive API.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}
