package common

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the ingestion pipeline and the stores.
// Callers branch on these with errors.Is; everything else is carried
// context from fmt.Errorf wrapping.
var (
	// ErrValidation marks rejected caller input, such as an unknown
	// forced class or a malformed request.
	ErrValidation = errors.New("validation failed")

	// ErrExtraction marks a terminal extraction failure. It is distinct
	// from a successful extraction that produced zero chunks.
	ErrExtraction = errors.New("extraction failed")

	// ErrDependencyUnavailable marks a required backing service that
	// could not be reached, such as the database or an extraction
	// engine that is not installed.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrAccessDenied marks a caller that may not see or mutate a
	// resource. Read paths translate it into empty results so that
	// denial is indistinguishable from absence.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound marks a resource that does not exist or is hidden
	// from the caller. The two cases are deliberately the same error.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost write race on an upsert. The stores
	// retry it internally; it escapes only when retries are exhausted.
	ErrConflict = errors.New("store conflict")
)

// StageError attaches the pipeline stage and the resource being worked
// on to a failure, so that audit and retry layers can classify it
// without parsing messages.
type StageError struct {
	Stage    string
	Resource string
	Err      error
}

func (e *StageError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Resource, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with stage and resource context. A nil err returns nil.
func AtStage(stage, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Resource: resource, Err: err}
}
