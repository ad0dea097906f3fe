package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wpdispatch/internal/application"
	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"siteUrl=https://a.example", "plugins=a,b", "note=x=y", "empty="})
	require.NoError(t, err)
	assert.Equal(t, []model.Input{
		{Name: "siteUrl", Value: "https://a.example"},
		{Name: "plugins", Value: "a,b"},
		{Name: "note", Value: "x=y"},
		{Name: "empty", Value: ""},
	}, inputs)

	_, err = parseInputs([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseInputs([]string{"=value"})
	assert.Error(t, err)
}

func TestPrintDispatch(t *testing.T) {
	var buf bytes.Buffer
	printDispatch(&buf, model.DispatchResult{
		ID:        42,
		Operation: model.OperationBackup,
		Workflow:  "backup.yml",
		Ref:       "main",
		HTMLURL:   "https://github.com/acme/automation/actions/runs/42",
	})

	out := buf.String()
	assert.Contains(t, out, "backup: backup.yml dispatched on main")
	assert.Contains(t, out, "run:  42")
	assert.Contains(t, out, "actions/runs/42")
}

func TestPrintDispatch_UnresolvedRun(t *testing.T) {
	var buf bytes.Buffer
	printDispatch(&buf, model.DispatchResult{Operation: model.OperationClone, Workflow: "site-clone.yml", Ref: "main"})

	assert.NotContains(t, buf.String(), "run:")
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	printRun(&buf, model.NewRunStatus(model.WorkflowRun{
		ID:         9,
		RunNumber:  3,
		Status:     model.RunStatusCompleted,
		Conclusion: model.RunConclusionSuccess,
		HeadBranch: "main",
		CreatedAt:  time.Now().Add(-3 * time.Minute),
	}))

	out := buf.String()
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "Workflow completed successfully")
	assert.Contains(t, out, "started 3 minutes ago")
}

func TestPrintBackup(t *testing.T) {
	var buf bytes.Buffer
	printBackup(&buf, &application.BackupResult{
		ManifestPath: "backups/manifest_x.json",
		Manifest: application.BackupManifest{
			SiteURL: "https://a.example",
			Version: "6.6.2",
		},
		Removed: []string{"old1", "old2"},
	})

	out := buf.String()
	assert.Contains(t, out, "WordPress 6.6.2")
	assert.Contains(t, out, "pruned 2 old entries")
}
