package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newTestService(ci *mockCIPlatform, store driven.DispatchStore) *WorkflowService {
	svc := NewWorkflowService(ci, store)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func cloneRequest() model.DispatchRequest {
	return model.NewDispatchRequest(model.OperationClone,
		model.InputSourceURL, "https://a.test",
		model.InputTargetRepo, "r",
		model.InputTargetBranch, "main",
	)
}

// --- Dispatch ---

func TestDispatch_Clone(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Equal(t, model.DispatchStatusPending, result.Status)
	assert.Equal(t, "Workflow triggered successfully", result.Message)
	assert.Equal(t, model.WorkflowDescriptor("site-clone.yml"), result.Workflow)
	assert.Equal(t, model.OperationClone, result.Operation)
	assert.Equal(t, "main", result.Ref)
	assert.Equal(t, fixedNow, result.DispatchedAt)

	require.Len(t, ci.dispatches, 1)
	assert.Equal(t, model.WorkflowDescriptor("site-clone.yml"), ci.dispatches[0].workflow)
	assert.Equal(t, "main", ci.dispatches[0].ref)
	assert.Equal(t, map[string]string{
		"sourceUrl":    "https://a.test",
		"targetRepo":   "r",
		"targetBranch": "main",
	}, ci.dispatches[0].inputs)
}

func TestDispatch_BackupDefaultsRefToMain(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	result, err := svc.Dispatch(context.Background(), model.DispatchRequest{Operation: model.OperationBackup})

	require.NoError(t, err)
	assert.Equal(t, "main", result.Ref)
	assert.Equal(t, model.WorkflowDescriptor("backup.yml"), result.Workflow)
	require.Len(t, ci.dispatches, 1)
	assert.Equal(t, "main", ci.dispatches[0].ref)
	assert.Empty(t, ci.dispatches[0].inputs)
}

func TestDispatch_TargetBranchBecomesRef(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	req := model.NewDispatchRequest(model.OperationLocalClone, model.InputTargetBranch, "staging")
	result, err := svc.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "staging", result.Ref)
	assert.Equal(t, "staging", ci.dispatches[0].ref)
}

func TestDispatch_EmptyInputsAreNotSent(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	req := model.NewDispatchRequest(model.OperationUpdatePlugins,
		model.InputSiteURL, "https://shop.test",
		model.InputPlugins, "",
	)
	_, err := svc.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"siteUrl": "https://shop.test"}, ci.dispatches[0].inputs)
}

func TestDispatch_UnknownOperation(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	_, err := svc.Dispatch(context.Background(), model.DispatchRequest{Operation: "deleteSite"})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownOperation)
	assert.Contains(t, err.Error(), "Unknown operation: deleteSite")
	assert.Contains(t, err.Error(), "clone, localClone, backup, updatePlugins, updateThemes")
	assert.Zero(t, ci.remoteCalls(), "no remote call for unknown operation")
}

func TestDispatch_RepositoryNotFound(t *testing.T) {
	ci := newMockCIPlatform()
	ci.repoErr = &driven.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	svc := newTestService(ci, nil)

	_, err := svc.Dispatch(context.Background(), cloneRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRepositoryNotFound)
	assert.Zero(t, ci.getWorkflowCalls)
	assert.Empty(t, ci.dispatches, "dispatch never attempted")
}

func TestDispatch_WorkflowNotFound(t *testing.T) {
	ci := newMockCIPlatform()
	ci.workflowErr = &driven.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	svc := newTestService(ci, nil)

	_, err := svc.Dispatch(context.Background(), cloneRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrWorkflowNotFound)
	assert.Contains(t, err.Error(), "site-clone.yml")
	assert.Empty(t, ci.dispatches)
}

func TestDispatch_PreflightRateLimitedIsDispatchFailure(t *testing.T) {
	ci := newMockCIPlatform()
	ci.repoErr = &driven.APIError{StatusCode: http.StatusForbidden, Message: "API rate limit exceeded", RateLimited: true}
	svc := newTestService(ci, nil)

	_, err := svc.Dispatch(context.Background(), cloneRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDispatchFailed)
	assert.NotErrorIs(t, err, model.ErrRepositoryNotFound)
	assert.Contains(t, err.Error(), "API rate limit exceeded")
}

func TestDispatch_FailureClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    error
		wantMessage string
	}{
		{
			name:        "404 names the workflow file",
			err:         &driven.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"},
			wantKind:    model.ErrWorkflowFileMissing,
			wantMessage: "Workflow file not found. Please check if site-clone.yml exists in the .github/workflows directory",
		},
		{
			name:        "401",
			err:         &driven.APIError{StatusCode: http.StatusUnauthorized, Message: "Bad credentials"},
			wantKind:    model.ErrAuthenticationFailed,
			wantMessage: "Authentication failed. Please check the WPDISPATCH_GITHUB_TOKEN value and its permissions",
		},
		{
			name:        "403",
			err:         &driven.APIError{StatusCode: http.StatusForbidden, Message: "Resource not accessible"},
			wantKind:    model.ErrAccessForbidden,
			wantMessage: "Access forbidden. Please check repository permissions",
		},
		{
			name:        "422",
			err:         &driven.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "Unexpected inputs"},
			wantKind:    model.ErrInvalidInputs,
			wantMessage: "Invalid workflow inputs provided",
		},
		{
			name:        "500 keeps the raw message",
			err:         &driven.APIError{StatusCode: http.StatusInternalServerError, Message: "Server Error"},
			wantKind:    model.ErrDispatchFailed,
			wantMessage: "Server Error",
		},
		{
			name:        "rate limit exhaustion",
			err:         &driven.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down", RateLimited: true},
			wantKind:    model.ErrDispatchFailed,
			wantMessage: "slow down",
		},
		{
			name:        "transport error without status",
			err:         errors.New("connection reset by peer"),
			wantKind:    model.ErrDispatchFailed,
			wantMessage: "connection reset by peer",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ci := newMockCIPlatform()
			ci.dispatchErr = tc.err
			svc := newTestService(ci, nil)

			_, err := svc.Dispatch(context.Background(), cloneRequest())

			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantKind)

			var wfErr *model.WorkflowError
			require.True(t, errors.As(err, &wfErr))
			assert.Equal(t, tc.wantMessage, wfErr.Message)
			assert.Equal(t, model.OperationClone, wfErr.Operation)
			assert.ErrorIs(t, err, tc.err, "cause is preserved")
		})
	}
}

// dispatchedRun is a run the CI platform created for cloneRequest on main.
func dispatchedRun(id int64, createdAt time.Time) model.WorkflowRun {
	return model.WorkflowRun{
		ID:         id,
		Event:      "workflow_dispatch",
		HeadBranch: "main",
		HTMLURL:    fmt.Sprintf("https://github.com/acme/automation/actions/runs/%d", id),
		CreatedAt:  createdAt,
	}
}

func TestDispatch_ResolvesFreshRun(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runs = []model.WorkflowRun{dispatchedRun(30433642, fixedNow.Add(time.Second))}
	svc := newTestService(ci, nil)

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(30433642), result.ID)
	assert.Equal(t, "https://github.com/acme/automation/actions/runs/30433642", result.HTMLURL)

	require.Len(t, ci.listOptions, 1)
	assert.Equal(t, driven.ListRunsOptions{Limit: runLookupLimit, Branch: "main", Event: "workflow_dispatch"}, ci.listOptions[0])
}

func TestDispatch_RunCreatedInDispatchSecondMatches(t *testing.T) {
	ci := newMockCIPlatform()
	// GitHub reports created_at in whole seconds.
	ci.runs = []model.WorkflowRun{dispatchedRun(7, fixedNow)}
	svc := NewWorkflowService(ci, nil)
	svc.now = func() time.Time { return fixedNow.Add(700 * time.Millisecond) }

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ID)
}

func TestDispatch_UnrelatedRunsAreNotClaimed(t *testing.T) {
	tests := []struct {
		name string
		run  model.WorkflowRun
	}{
		{name: "stale run", run: dispatchedRun(1, fixedNow.Add(-time.Hour))},
		{name: "run created before the dispatch", run: dispatchedRun(2, fixedNow.Add(-4*time.Second))},
		{
			name: "other event",
			run: func() model.WorkflowRun {
				r := dispatchedRun(3, fixedNow.Add(time.Second))
				r.Event = "push"
				return r
			}(),
		},
		{
			name: "other branch",
			run: func() model.WorkflowRun {
				r := dispatchedRun(4, fixedNow.Add(time.Second))
				r.HeadBranch = "staging"
				return r
			}(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ci := newMockCIPlatform()
			ci.runs = []model.WorkflowRun{tc.run}
			svc := newTestService(ci, nil)

			result, err := svc.Dispatch(context.Background(), cloneRequest())

			require.NoError(t, err)
			assert.Zero(t, result.ID)
			assert.Equal(t, ci.workflow.HTMLURL, result.HTMLURL)
		})
	}
}

func TestDispatch_SeveralCandidatesLeaveRunUnresolved(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runs = []model.WorkflowRun{
		dispatchedRun(11, fixedNow.Add(2*time.Second)),
		dispatchedRun(10, fixedNow.Add(time.Second)),
	}
	svc := newTestService(ci, nil)

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Zero(t, result.ID)
}

func TestDispatch_UnresolvedDispatchBlocksNextMatch(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	// First dispatch finds no run yet.
	first, err := svc.Dispatch(context.Background(), cloneRequest())
	require.NoError(t, err)
	require.Zero(t, first.ID)

	// The run that shows up now may belong to the first dispatch.
	ci.runs = []model.WorkflowRun{dispatchedRun(20, fixedNow.Add(time.Second))}
	second, err := svc.Dispatch(context.Background(), cloneRequest())
	require.NoError(t, err)
	assert.Zero(t, second.ID)

	// Once the window has passed, a fresh run is attributed again.
	later := fixedNow.Add(unresolvedWindow + time.Minute)
	svc.now = func() time.Time { return later }
	ci.runs = []model.WorkflowRun{dispatchedRun(21, later.Add(time.Second))}
	third, err := svc.Dispatch(context.Background(), cloneRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(21), third.ID)
}

func TestDispatch_OtherRefIsNotBlocked(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	_, err := svc.Dispatch(context.Background(), cloneRequest())
	require.NoError(t, err)

	staging := dispatchedRun(30, fixedNow.Add(time.Second))
	staging.HeadBranch = "staging"
	ci.runs = []model.WorkflowRun{staging}
	req := model.NewDispatchRequest(model.OperationClone,
		model.InputSourceURL, "https://a.test",
		model.InputTargetRepo, "r",
		model.InputTargetBranch, "staging",
	)

	result, err := svc.Dispatch(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, int64(30), result.ID)
}

func TestDispatch_RunLookupFailureIsNotFatal(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runsErr = &driven.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}
	svc := newTestService(ci, nil)

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Zero(t, result.ID)
	assert.Equal(t, model.DispatchStatusPending, result.Status)
}

func TestDispatch_RecordsToStore(t *testing.T) {
	ci := newMockCIPlatform()
	store := &mockDispatchStore{}
	svc := newTestService(ci, store)

	req := cloneRequest()
	_, err := svc.Dispatch(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, model.OperationClone, rec.Operation)
	assert.Equal(t, model.WorkflowDescriptor("site-clone.yml"), rec.Workflow)
	assert.Equal(t, "main", rec.Ref)
	assert.Equal(t, req.Inputs, rec.Inputs)
	assert.Equal(t, fixedNow, rec.DispatchedAt)
}

func TestDispatch_StoreFailureIsNotFatal(t *testing.T) {
	ci := newMockCIPlatform()
	store := &mockDispatchStore{recordErr: errors.New("disk full")}
	svc := newTestService(ci, store)

	result, err := svc.Dispatch(context.Background(), cloneRequest())

	require.NoError(t, err)
	assert.Equal(t, model.DispatchStatusPending, result.Status)
}

func TestDispatch_NotIdempotent(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	for range 2 {
		_, err := svc.Dispatch(context.Background(), cloneRequest())
		require.NoError(t, err)
	}

	assert.Len(t, ci.dispatches, 2)
}

// --- GetStatus ---

func TestGetStatus(t *testing.T) {
	ci := newMockCIPlatform()
	ci.run = &model.WorkflowRun{
		ID:         42,
		Status:     model.RunStatusCompleted,
		Conclusion: model.RunConclusionSuccess,
		HTMLURL:    "https://github.com/acme/automation/actions/runs/42",
	}
	svc := newTestService(ci, nil)

	status, err := svc.GetStatus(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), status.ID)
	assert.Equal(t, "Workflow completed successfully", status.Message)
	assert.True(t, status.IsTerminal())
}

func TestGetStatus_NeverCached(t *testing.T) {
	ci := newMockCIPlatform()
	ci.run = &model.WorkflowRun{ID: 42, Status: model.RunStatusInProgress}
	svc := newTestService(ci, nil)

	first, err := svc.GetStatus(context.Background(), 42)
	require.NoError(t, err)

	ci.run = &model.WorkflowRun{ID: 42, Status: model.RunStatusCompleted, Conclusion: model.RunConclusionFailure}
	second, err := svc.GetStatus(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Workflow is running", first.Message)
	assert.Equal(t, "Workflow failed", second.Message)
	assert.Equal(t, 2, ci.getRunCalls)
}

func TestGetStatus_Failure(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runErr = &driven.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	svc := newTestService(ci, nil)

	_, err := svc.GetStatus(context.Background(), 7)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStatusFetchFailed)

	var wfErr *model.WorkflowError
	require.True(t, errors.As(err, &wfErr))
	assert.Equal(t, int64(7), wfErr.RunID)
	assert.Equal(t, "Not Found", wfErr.Message)
}

// --- ListRecentRuns ---

func TestListRecentRuns_PreservesOrderAndDerivesMessages(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runs = []model.WorkflowRun{
		{ID: 3, Status: model.RunStatusQueued},
		{ID: 2, Status: model.RunStatusCompleted, Conclusion: model.RunConclusionCancelled},
		{ID: 1, Status: model.RunStatusCompleted, Conclusion: model.RunConclusionSuccess},
	}
	svc := newTestService(ci, nil)

	statuses, err := svc.ListRecentRuns(context.Background(), model.OperationUpdatePlugins, 10)

	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{statuses[0].ID, statuses[1].ID, statuses[2].ID})
	assert.Equal(t, "Workflow is queued", statuses[0].Message)
	assert.Equal(t, "Workflow was cancelled", statuses[1].Message)
	assert.Equal(t, "Workflow completed successfully", statuses[2].Message)
	assert.Equal(t, 10, ci.listOptions[0].Limit)
}

func TestListRecentRuns_Limits(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero defaults", 0, DefaultRunLimit},
		{"negative defaults", -3, DefaultRunLimit},
		{"capped", 500, MaxRunLimit},
		{"explicit", 25, 25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ci := newMockCIPlatform()
			svc := newTestService(ci, nil)

			_, err := svc.ListRecentRuns(context.Background(), model.OperationBackup, tc.limit)

			require.NoError(t, err)
			assert.Equal(t, tc.wantLimit, ci.listOptions[0].Limit)
		})
	}
}

func TestListRecentRuns_TruncatesOversizedPage(t *testing.T) {
	ci := newMockCIPlatform()
	for i := range 5 {
		ci.runs = append(ci.runs, model.WorkflowRun{ID: int64(100 - i), Status: model.RunStatusQueued})
	}
	svc := newTestService(ci, nil)

	statuses, err := svc.ListRecentRuns(context.Background(), model.OperationUpdateThemes, 2)

	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, int64(100), statuses[0].ID)
	assert.Equal(t, int64(99), statuses[1].ID)
}

func TestListRecentRuns_UnknownOperation(t *testing.T) {
	ci := newMockCIPlatform()
	svc := newTestService(ci, nil)

	_, err := svc.ListRecentRuns(context.Background(), "nope", 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownOperation)
	assert.Zero(t, ci.remoteCalls())
}

func TestListRecentRuns_Failure(t *testing.T) {
	ci := newMockCIPlatform()
	ci.runsErr = &driven.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	svc := newTestService(ci, nil)

	_, err := svc.ListRecentRuns(context.Background(), model.OperationClone, 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStatusFetchFailed)
}

// --- RecentDispatches ---

func TestRecentDispatches_NoStore(t *testing.T) {
	svc := newTestService(newMockCIPlatform(), nil)

	records, err := svc.RecentDispatches(context.Background(), 5)

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRecentDispatches_DefaultsLimit(t *testing.T) {
	store := &mockDispatchStore{}
	svc := newTestService(newMockCIPlatform(), store)

	_, err := svc.RecentDispatches(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, DefaultRunLimit, store.lastLimit)
}

func TestRecentDispatches_StoreError(t *testing.T) {
	store := &mockDispatchStore{listErr: errors.New("locked")}
	svc := newTestService(newMockCIPlatform(), store)

	_, err := svc.RecentDispatches(context.Background(), 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}
