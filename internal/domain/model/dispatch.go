package model

import "time"

// Input names understood by the automation workflows.
const (
	InputSourceURL    = "sourceUrl"
	InputTargetRepo   = "targetRepo"
	InputTargetBranch = "targetBranch"
	InputSiteURL      = "siteUrl"
	InputPlugins      = "plugins"
	InputThemes       = "themes"
)

// DispatchStatusPending is the status of every freshly dispatched workflow.
const DispatchStatusPending = "pending"

// Input is a single named workflow_dispatch input.
type Input struct {
	Name  string
	Value string
}

// DispatchRequest asks for an operation to be run with the given inputs.
// Inputs keep the order the caller supplied them in.
type DispatchRequest struct {
	Operation Operation
	Inputs    []Input
}

// NewDispatchRequest builds a DispatchRequest from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewDispatchRequest(op Operation, pairs ...string) DispatchRequest {
	inputs := make([]Input, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		inputs = append(inputs, Input{Name: pairs[i], Value: pairs[i+1]})
	}
	return DispatchRequest{Operation: op, Inputs: inputs}
}

// Input returns the value of the first input with the given name, or "".
func (r DispatchRequest) Input(name string) string {
	for _, in := range r.Inputs {
		if in.Name == name {
			return in.Value
		}
	}
	return ""
}

// Ref returns the git ref to dispatch against: targetBranch when set,
// DefaultRef otherwise.
func (r DispatchRequest) Ref() string {
	if branch := r.Input(InputTargetBranch); branch != "" {
		return branch
	}
	return DefaultRef
}

// InputMap returns the non-empty inputs keyed by name. When a name repeats,
// the last value wins.
func (r DispatchRequest) InputMap() map[string]string {
	m := make(map[string]string, len(r.Inputs))
	for _, in := range r.Inputs {
		if in.Value == "" {
			continue
		}
		m[in.Name] = in.Value
	}
	return m
}

// DispatchResult describes an accepted dispatch. ID is zero when the run could
// not be resolved at dispatch time.
type DispatchResult struct {
	ID           int64
	Status       string
	Message      string
	HTMLURL      string
	Workflow     WorkflowDescriptor
	Operation    Operation
	Ref          string
	DispatchedAt time.Time
}

// DispatchRecord is the persisted audit entry for a successful dispatch.
type DispatchRecord struct {
	ID           int64 // Database row ID.
	Operation    Operation
	Workflow     WorkflowDescriptor
	Ref          string
	Inputs       []Input
	RunID        int64 // Zero when the run was not resolved.
	HTMLURL      string
	DispatchedAt time.Time
}
