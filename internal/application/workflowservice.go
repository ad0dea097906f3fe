// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// Run listing bounds.
const (
	DefaultRunLimit = 10
	MaxRunLimit     = 100
)

// dispatchMessage is the message attached to every accepted dispatch.
const dispatchMessage = "Workflow triggered successfully"

// workflowDispatchEvent is the trigger event of runs created by Dispatch.
const workflowDispatchEvent = "workflow_dispatch"

// runLookupLimit is the page size used to find the run a dispatch created.
// More than one candidate in the page means the run cannot be told apart.
const runLookupLimit = 5

// WorkflowService dispatches automation workflows and reports on their runs.
// It is safe for concurrent use.
type WorkflowService struct {
	ci      driven.CIPlatform
	store   driven.DispatchStore
	tracker *dispatchTracker
	now     func() time.Time
}

// NewWorkflowService creates a WorkflowService. store may be nil, in which
// case dispatches are not recorded.
func NewWorkflowService(ci driven.CIPlatform, store driven.DispatchStore) *WorkflowService {
	return &WorkflowService{
		ci:      ci,
		store:   store,
		tracker: newDispatchTracker(),
		now:     time.Now,
	}
}

// Dispatch verifies the automation repository and workflow, then triggers a
// workflow_dispatch event for the request. Every call creates a new run.
func (s *WorkflowService) Dispatch(ctx context.Context, req model.DispatchRequest) (model.DispatchResult, error) {
	workflow, ok := req.Operation.Workflow()
	if !ok {
		return model.DispatchResult{}, unknownOperation(req.Operation)
	}

	if _, err := s.ci.GetRepository(ctx); err != nil {
		return model.DispatchResult{}, preflightError(req.Operation, model.ErrRepositoryNotFound,
			"Repository not found or not accessible", err)
	}

	wf, err := s.ci.GetWorkflow(ctx, workflow)
	if err != nil {
		return model.DispatchResult{}, preflightError(req.Operation, model.ErrWorkflowNotFound,
			fmt.Sprintf("Workflow %s not found in repository", workflow), err)
	}

	ref := req.Ref()
	dispatchedAt := s.now()

	ticket := s.tracker.begin(string(workflow)+"@"+ref, dispatchedAt)
	resolved := false
	defer func() { s.tracker.end(ticket, resolved) }()

	if err := s.ci.CreateDispatch(ctx, workflow, ref, req.InputMap()); err != nil {
		resolved = true // nothing was created
		return model.DispatchResult{}, dispatchFailure(req.Operation, workflow, err)
	}

	slog.Info("workflow dispatched", "operation", req.Operation, "workflow", workflow, "ref", ref)

	result := model.DispatchResult{
		Status:       model.DispatchStatusPending,
		Message:      dispatchMessage,
		HTMLURL:      wf.HTMLURL,
		Workflow:     workflow,
		Operation:    req.Operation,
		Ref:          ref,
		DispatchedAt: dispatchedAt,
	}

	if run := s.resolveRun(ctx, workflow, ref, dispatchedAt); run != nil {
		if s.tracker.exclusive(ticket) {
			result.ID = run.ID
			result.HTMLURL = run.HTMLURL
			resolved = true
		} else {
			slog.Info("dispatched run is ambiguous, overlapping dispatch of the same workflow",
				"workflow", workflow, "ref", ref, "candidate", run.ID)
		}
	}

	s.record(ctx, req, result)

	return result, nil
}

// resolveRun looks for the run created by a dispatch made at dispatchedAt.
// A run qualifies when it was triggered by workflow_dispatch on ref no earlier
// than the dispatch second (GitHub timestamps have second precision). It
// returns nil when no run qualifies yet, or when more than one does.
func (s *WorkflowService) resolveRun(ctx context.Context, workflow model.WorkflowDescriptor, ref string, dispatchedAt time.Time) *model.WorkflowRun {
	runs, err := s.ci.ListRuns(ctx, workflow, driven.ListRunsOptions{
		Limit:  runLookupLimit,
		Branch: ref,
		Event:  workflowDispatchEvent,
	})
	if err != nil {
		slog.Warn("resolve dispatched run failed", "workflow", workflow, "error", err)
		return nil
	}

	since := dispatchedAt.Truncate(time.Second)
	var match *model.WorkflowRun
	for i := range runs {
		run := &runs[i]
		if run.Event != workflowDispatchEvent || run.HeadBranch != ref || run.CreatedAt.Before(since) {
			continue
		}
		if match != nil {
			slog.Info("several runs match the dispatch", "workflow", workflow, "ref", ref)
			return nil
		}
		match = run
	}

	if match == nil {
		slog.Debug("dispatched run not registered yet", "workflow", workflow, "ref", ref)
	}
	return match
}

func (s *WorkflowService) record(ctx context.Context, req model.DispatchRequest, result model.DispatchResult) {
	if s.store == nil {
		return
	}

	_, err := s.store.Record(ctx, model.DispatchRecord{
		Operation:    result.Operation,
		Workflow:     result.Workflow,
		Ref:          result.Ref,
		Inputs:       req.Inputs,
		RunID:        result.ID,
		HTMLURL:      result.HTMLURL,
		DispatchedAt: result.DispatchedAt,
	})
	if err != nil {
		slog.Error("record dispatch failed", "operation", result.Operation, "error", err)
	}
}

// GetStatus fetches a run and derives its operator-facing message. The run is
// read from the platform on every call.
func (s *WorkflowService) GetStatus(ctx context.Context, runID int64) (model.RunStatus, error) {
	run, err := s.ci.GetRun(ctx, runID)
	if err != nil {
		return model.RunStatus{}, &model.WorkflowError{
			Kind:    model.ErrStatusFetchFailed,
			RunID:   runID,
			Message: causeMessage(err),
			Err:     err,
		}
	}

	return model.NewRunStatus(*run), nil
}

// ListRecentRuns returns up to limit runs of the operation's workflow, newest
// first as reported by the platform. A non-positive limit means
// DefaultRunLimit; limits above MaxRunLimit are capped.
func (s *WorkflowService) ListRecentRuns(ctx context.Context, op model.Operation, limit int) ([]model.RunStatus, error) {
	workflow, ok := op.Workflow()
	if !ok {
		return nil, unknownOperation(op)
	}

	if limit <= 0 {
		limit = DefaultRunLimit
	}
	limit = min(limit, MaxRunLimit)

	runs, err := s.ci.ListRuns(ctx, workflow, driven.ListRunsOptions{Limit: limit})
	if err != nil {
		return nil, &model.WorkflowError{
			Kind:      model.ErrStatusFetchFailed,
			Operation: op,
			Message:   causeMessage(err),
			Err:       err,
		}
	}

	if len(runs) > limit {
		runs = runs[:limit]
	}

	statuses := make([]model.RunStatus, 0, len(runs))
	for _, run := range runs {
		statuses = append(statuses, model.NewRunStatus(run))
	}

	return statuses, nil
}

// RecentDispatches returns the newest recorded dispatches. It returns an
// empty slice when no store is configured.
func (s *WorkflowService) RecentDispatches(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
	if s.store == nil {
		return []model.DispatchRecord{}, nil
	}

	if limit <= 0 {
		limit = DefaultRunLimit
	}

	records, err := s.store.ListRecent(ctx, min(limit, MaxRunLimit))
	if err != nil {
		return nil, fmt.Errorf("list recent dispatches: %w", err)
	}

	return records, nil
}

func unknownOperation(op model.Operation) *model.WorkflowError {
	return &model.WorkflowError{
		Kind:      model.ErrUnknownOperation,
		Operation: op,
		Message:   fmt.Sprintf("Unknown operation: %s. Valid operations are: %s", op, model.OperationNames()),
	}
}

// preflightError classifies a failed repository or workflow lookup. A lookup
// abandoned on rate limiting is a dispatch failure, not a missing resource.
func preflightError(op model.Operation, kind error, message string, err error) *model.WorkflowError {
	var apiErr *driven.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited {
		return &model.WorkflowError{
			Kind:      model.ErrDispatchFailed,
			Operation: op,
			Message:   apiErr.Message,
			Err:       err,
		}
	}

	return &model.WorkflowError{
		Kind:      kind,
		Operation: op,
		Message:   message,
		Err:       err,
	}
}

// dispatchFailure classifies a failed createDispatch call by HTTP status.
func dispatchFailure(op model.Operation, workflow model.WorkflowDescriptor, err error) *model.WorkflowError {
	var apiErr *driven.APIError
	if !errors.As(err, &apiErr) {
		return &model.WorkflowError{
			Kind:      model.ErrDispatchFailed,
			Operation: op,
			Message:   err.Error(),
			Err:       err,
		}
	}

	if apiErr.RateLimited {
		return &model.WorkflowError{
			Kind:      model.ErrDispatchFailed,
			Operation: op,
			Message:   apiErr.Message,
			Err:       err,
		}
	}

	message, kind := model.ClassifyDispatchFailure(apiErr.StatusCode, workflow, apiErr.Message)
	return &model.WorkflowError{
		Kind:      kind,
		Operation: op,
		Message:   message,
		Err:       err,
	}
}

func causeMessage(err error) string {
	var apiErr *driven.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
