package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Match with errors.Is against any error returned by the
// workflow service.
var (
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrWorkflowFileMissing  = errors.New("workflow file missing")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccessForbidden      = errors.New("access forbidden")
	ErrInvalidInputs        = errors.New("invalid inputs")
	ErrDispatchFailed       = errors.New("dispatch failed")
	ErrStatusFetchFailed    = errors.New("status fetch failed")
)

// WorkflowError is the error returned by every workflow service operation.
// Kind is one of the Err* sentinels; Err is the underlying cause, if any.
type WorkflowError struct {
	Kind      error
	Operation Operation
	RunID     int64
	Message   string
	Err       error
}

func (e *WorkflowError) Error() string {
	switch {
	case e.Operation != "":
		return fmt.Sprintf("%s (operation %s): %s", e.Kind, e.Operation, e.Message)
	case e.RunID != 0:
		return fmt.Sprintf("%s (run %d): %s", e.Kind, e.RunID, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is matches the error kind, so errors.Is(err, ErrInvalidInputs) works on the
// wrapped value as well as on the cause chain.
func (e *WorkflowError) Is(target error) bool {
	return e.Kind == target
}

// ClassifyDispatchFailure maps the HTTP status of a failed dispatch call to an
// operator-facing message and error kind. rawMessage is used verbatim for
// statuses without a dedicated kind.
func ClassifyDispatchFailure(statusCode int, workflow WorkflowDescriptor, rawMessage string) (message string, kind error) {
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Sprintf(
			"Workflow file not found. Please check if %s exists in the .github/workflows directory", workflow), ErrWorkflowFileMissing
	case http.StatusUnauthorized:
		return "Authentication failed. Please check the WPDISPATCH_GITHUB_TOKEN value and its permissions", ErrAuthenticationFailed
	case http.StatusForbidden:
		return "Access forbidden. Please check repository permissions", ErrAccessForbidden
	case http.StatusUnprocessableEntity:
		return "Invalid workflow inputs provided", ErrInvalidInputs
	default:
		return rawMessage, ErrDispatchFailed
	}
}
