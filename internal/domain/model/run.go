package model

import (
	"fmt"
	"time"
)

// Run lifecycle states reported by GitHub Actions.
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
)

// Run conclusions reported by GitHub Actions once a run has completed.
const (
	RunConclusionSuccess   = "success"
	RunConclusionFailure   = "failure"
	RunConclusionCancelled = "cancelled"
	RunConclusionSkipped   = "skipped"
)

// WorkflowRun is a single workflow execution as reported by the CI platform.
type WorkflowRun struct {
	ID           int64
	RunNumber    int
	Status       string
	Conclusion   string // Empty until the run completes.
	HTMLURL      string
	LogsURL      string
	HeadBranch   string
	Event        string
	DisplayTitle string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunStatus is a WorkflowRun with an operator-facing message attached.
type RunStatus struct {
	WorkflowRun
	Message string
}

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s.Status == RunStatusCompleted
}

// NewRunStatus derives the RunStatus for a run.
func NewRunStatus(run WorkflowRun) RunStatus {
	return RunStatus{
		WorkflowRun: run,
		Message:     StatusMessage(run.Status, run.Conclusion),
	}
}

// StatusMessage renders the human-readable message for a (status, conclusion) pair.
func StatusMessage(status, conclusion string) string {
	if status == RunStatusCompleted {
		switch conclusion {
		case RunConclusionSuccess:
			return "Workflow completed successfully"
		case RunConclusionFailure:
			return "Workflow failed"
		case RunConclusionCancelled:
			return "Workflow was cancelled"
		case RunConclusionSkipped:
			return "Workflow was skipped"
		default:
			return fmt.Sprintf("Workflow completed with conclusion: %s", conclusion)
		}
	}
	if status == RunStatusInProgress {
		return "Workflow is running"
	}
	return fmt.Sprintf("Workflow is %s", status)
}

// Repository is the automation repository hosting the workflows.
type Repository struct {
	FullName      string
	DefaultBranch string
	HTMLURL       string
}

// Workflow is a workflow definition found in the automation repository.
type Workflow struct {
	ID      int64
	Name    string
	Path    string
	State   string
	HTMLURL string
}
