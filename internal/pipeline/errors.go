package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind tags a pipeline failure so handling can be exhaustive instead of
// string-matched.
type ErrorKind string

const (
	KindExternalTool ErrorKind = "external_tool_failure"
	KindEmptyOutput  ErrorKind = "empty_output"
	KindPackaging    ErrorKind = "packaging_failure"
	KindResource     ErrorKind = "resource_error"
)

// Error is a job-aborting stage failure.
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the kind of a pipeline error, or "" for untagged errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
