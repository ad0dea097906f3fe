package driven

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// ListRunsOptions narrows a workflow run listing.
type ListRunsOptions struct {
	Limit  int    // Page size; the platform caps it at 100.
	Branch string // Optional head branch filter.
	Event  string // Optional triggering event filter (e.g., "workflow_dispatch").
}

// CIPlatform defines the driven port for the CI system hosting the automation
// workflows. Implementations are bound to a single owner/repo at construction.
// Every failed call returns an *APIError.
type CIPlatform interface {
	// GetRepository fetches the automation repository.
	GetRepository(ctx context.Context) (*model.Repository, error)
	// GetWorkflow fetches a workflow definition by file name.
	GetWorkflow(ctx context.Context, workflow model.WorkflowDescriptor) (*model.Workflow, error)
	// CreateDispatch triggers a workflow_dispatch event on ref with the given inputs.
	CreateDispatch(ctx context.Context, workflow model.WorkflowDescriptor, ref string, inputs map[string]string) error
	// GetRun fetches a single workflow run.
	GetRun(ctx context.Context, runID int64) (*model.WorkflowRun, error)
	// ListRuns returns a single page of runs for a workflow, newest first.
	ListRuns(ctx context.Context, workflow model.WorkflowDescriptor, opts ListRunsOptions) ([]model.WorkflowRun, error)
}

// APIError is a failed CI platform call. StatusCode is zero when no HTTP
// response was received. RateLimited is set when the call was abandoned after
// exhausting its rate-limit retries.
type APIError struct {
	StatusCode  int
	Message     string
	RateLimited bool
	Err         error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
