package pages_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/viewmodel"
)

func TestDashboard_EscapesUserValues(t *testing.T) {
	data := vm.DashboardViewModel{
		Operations: []vm.OperationViewModel{{
			Name:       "backup",
			Title:      "Backup",
			FormAction: "/app/dispatch/backup",
			RunsPath:   "/?op=backup",
			Selected:   true,
			Fields:     []vm.FieldViewModel{{Name: "siteUrl", Label: "Site URL", Required: true}},
		}},
		Flash:      &vm.FlashViewModel{Kind: "error", Message: `bad <img src=x onerror=alert(1)>`},
		CSRFToken:  `tok"en`,
		Dispatches: []vm.DispatchViewModel{{Operation: "backup", Inputs: "siteUrl=<b>", URL: "https://github.com/acme/automation/actions/workflows/site-backup.yml"}},
	}

	var buf bytes.Buffer
	require.NoError(t, pages.Dashboard(data).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, `class="flash flash-error"`)
	assert.Contains(t, html, "bad &lt;img src=x onerror=alert(1)&gt;")
	assert.Contains(t, html, `value="tok&#34;en"`)
	assert.Contains(t, html, `class="tab tab-active" href="/?op=backup"`)
	assert.Contains(t, html, " required>")
	assert.Contains(t, html, "<code>siteUrl=&lt;b&gt;</code>")
	assert.Contains(t, html, `rel="noopener">workflow</a>`)
	assert.Contains(t, html, "No runs yet.")
}

func TestDashboard_RejectsUnsafeLinks(t *testing.T) {
	data := vm.DashboardViewModel{
		Runs: []vm.RunViewModel{{ID: 1, RunNumber: 3, DetailPath: "javascript:alert(1)", Message: "Workflow queued"}},
	}

	var buf bytes.Buffer
	require.NoError(t, pages.Dashboard(data).Render(context.Background(), &buf))

	assert.NotContains(t, buf.String(), "javascript:")
	assert.Contains(t, buf.String(), ">#3</a>")
}

func TestRun_RendersRawTitleAndRefreshHint(t *testing.T) {
	data := vm.RunPageViewModel{
		Run: vm.RunViewModel{
			RunNumber:   12,
			TitleHTML:   "Backup <strong>prod</strong>",
			Status:      "in_progress",
			Message:     "Workflow is running",
			StatusClass: "status-running",
			URL:         "https://github.com/acme/automation/actions/runs/99",
		},
		RefreshSeconds: 5,
	}

	var buf bytes.Buffer
	require.NoError(t, pages.Run(data).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "<h2>Run #12</h2>")
	assert.Contains(t, html, `<p class="run-title">Backup <strong>prod</strong></p>`)
	assert.Contains(t, html, `<span class="badge status-running">Workflow is running</span>`)
	assert.NotContains(t, html, "Conclusion")
	assert.Contains(t, html, "Refreshing every 5 seconds until the run completes.")
}
