package model

import (
	"slices"
	"strings"
)

// Operation identifies an automation the console can trigger.
type Operation string

const (
	OperationClone         Operation = "clone"
	OperationLocalClone    Operation = "localClone"
	OperationBackup        Operation = "backup"
	OperationUpdatePlugins Operation = "updatePlugins"
	OperationUpdateThemes  Operation = "updateThemes"
)

// WorkflowDescriptor is the workflow file name inside .github/workflows of the
// automation repository (e.g., "site-clone.yml").
type WorkflowDescriptor string

// DefaultRef is the branch dispatched against when no targetBranch input is given.
const DefaultRef = "main"

// operationOrder fixes the listing order of the workflow table.
var operationOrder = []Operation{
	OperationClone,
	OperationLocalClone,
	OperationBackup,
	OperationUpdatePlugins,
	OperationUpdateThemes,
}

// workflowFiles is never written after init.
var workflowFiles = map[Operation]WorkflowDescriptor{
	OperationClone:         "site-clone.yml",
	OperationLocalClone:    "local-clone.yml",
	OperationBackup:        "backup.yml",
	OperationUpdatePlugins: "update-plugins.yml",
	OperationUpdateThemes:  "update-themes.yml",
}

// Workflow returns the workflow file bound to the operation. ok is false for
// operations outside the table.
func (o Operation) Workflow() (WorkflowDescriptor, bool) {
	wf, ok := workflowFiles[o]
	return wf, ok
}

// Valid reports whether the operation is part of the workflow table.
func (o Operation) Valid() bool {
	_, ok := workflowFiles[o]
	return ok
}

// Operations returns every known operation in table order. The returned slice
// is a copy and may be modified by the caller.
func Operations() []Operation {
	return slices.Clone(operationOrder)
}

// OperationNames returns the known operation names joined with ", ".
func OperationNames() string {
	names := make([]string, 0, len(operationOrder))
	for _, op := range operationOrder {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}

// ParseOperation resolves s to an operation. s may be an operation name
// ("updatePlugins") or its workflow file name ("update-plugins.yml").
func ParseOperation(s string) (Operation, bool) {
	if op := Operation(s); op.Valid() {
		return op, true
	}
	for _, op := range operationOrder {
		if string(workflowFiles[op]) == s {
			return op, true
		}
	}
	return "", false
}
