package application

import (
	"context"
	"sync"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// dispatchCall captures the arguments of a CreateDispatch call.
type dispatchCall struct {
	workflow model.WorkflowDescriptor
	ref      string
	inputs   map[string]string
}

// mockCIPlatform is a hand-written driven.CIPlatform with per-method call counters.
type mockCIPlatform struct {
	mu sync.Mutex

	repo    *model.Repository
	repoErr error

	workflow    *model.Workflow
	workflowErr error

	dispatchErr error
	dispatches  []dispatchCall

	run    *model.WorkflowRun
	runErr error

	runs        []model.WorkflowRun
	runsErr     error
	listOptions []driven.ListRunsOptions

	getRepositoryCalls int
	getWorkflowCalls   int
	getRunCalls        int
	listRunsCalls      int
}

var _ driven.CIPlatform = (*mockCIPlatform)(nil)

func newMockCIPlatform() *mockCIPlatform {
	return &mockCIPlatform{
		repo: &model.Repository{FullName: "acme/automation", DefaultBranch: "main"},
		workflow: &model.Workflow{
			ID:      1,
			Name:    "Workflow",
			State:   "active",
			HTMLURL: "https://github.com/acme/automation/actions/workflows/wf.yml",
		},
	}
}

func (m *mockCIPlatform) GetRepository(_ context.Context) (*model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getRepositoryCalls++
	if m.repoErr != nil {
		return nil, m.repoErr
	}
	return m.repo, nil
}

func (m *mockCIPlatform) GetWorkflow(_ context.Context, _ model.WorkflowDescriptor) (*model.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getWorkflowCalls++
	if m.workflowErr != nil {
		return nil, m.workflowErr
	}
	return m.workflow, nil
}

func (m *mockCIPlatform) CreateDispatch(_ context.Context, workflow model.WorkflowDescriptor, ref string, inputs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, dispatchCall{workflow: workflow, ref: ref, inputs: inputs})
	return m.dispatchErr
}

func (m *mockCIPlatform) GetRun(_ context.Context, _ int64) (*model.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getRunCalls++
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.run, nil
}

func (m *mockCIPlatform) ListRuns(_ context.Context, _ model.WorkflowDescriptor, opts driven.ListRunsOptions) ([]model.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listRunsCalls++
	m.listOptions = append(m.listOptions, opts)
	if m.runsErr != nil {
		return nil, m.runsErr
	}
	return m.runs, nil
}

func (m *mockCIPlatform) remoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getRepositoryCalls + m.getWorkflowCalls + len(m.dispatches) + m.getRunCalls + m.listRunsCalls
}

// mockDispatchStore records dispatches in memory.
type mockDispatchStore struct {
	mu        sync.Mutex
	records   []model.DispatchRecord
	recordErr error
	listErr   error
	lastLimit int
}

var _ driven.DispatchStore = (*mockDispatchStore)(nil)

func (m *mockDispatchStore) Record(_ context.Context, rec model.DispatchRecord) (model.DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return model.DispatchRecord{}, m.recordErr
	}
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *mockDispatchStore) ListRecent(_ context.Context, limit int) ([]model.DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

// siteToolCall captures one WP-CLI invocation.
type siteToolCall struct {
	url  string
	args []string
}

// fakeSiteTool records WP-CLI invocations and answers from canned output.
type fakeSiteTool struct {
	calls   []siteToolCall
	outputs map[string]string // keyed by the first two args joined with a space
	failOn  string
	err     error
}

var _ driven.SiteTool = (*fakeSiteTool)(nil)

func (f *fakeSiteTool) Run(_ context.Context, url string, args ...string) (string, error) {
	f.calls = append(f.calls, siteToolCall{url: url, args: args})

	key := args[0]
	if len(args) > 1 {
		key += " " + args[1]
	}
	if f.failOn != "" && key == f.failOn {
		return "", f.err
	}
	return f.outputs[key], nil
}
