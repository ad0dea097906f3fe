// Package web implements the HTML dashboard driving adapter using templ components.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/wpdispatch/internal/application"
	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// runRefreshSeconds is how often the run page reloads while the run is active.
const runRefreshSeconds = 5

// dashboardListLimit bounds the runs and dispatches shown on the dashboard.
const dashboardListLimit = 10

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	workflows *application.WorkflowService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(workflows *application.WorkflowService, logger *slog.Logger) *Handler {
	return &Handler{
		workflows: workflows,
		logger:    logger,
	}
}

// Dashboard renders the main dashboard page. ?op= selects whose runs are listed.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, nil)
}

// Dispatch handles a dispatch form submission.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	op := model.Operation(r.PathValue("operation"))
	req := model.DispatchRequest{Operation: op}
	for _, f := range operationFields[op] {
		value := strings.TrimSpace(r.PostFormValue(f.Name))
		if f.Name == model.InputPlugins || f.Name == model.InputThemes {
			value = normalizeList(value)
		}
		if f.Required && value == "" {
			h.renderDashboard(w, r, http.StatusBadRequest, &vm.FlashViewModel{
				Kind:    "error",
				Message: f.Label + " is required",
			})
			return
		}
		req.Inputs = append(req.Inputs, model.Input{Name: f.Name, Value: value})
	}

	result, err := h.workflows.Dispatch(r.Context(), req)
	if err != nil {
		h.logger.Error("dashboard dispatch failed", "operation", op, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrUnknownOperation) {
			status = http.StatusBadRequest
		}
		h.renderDashboard(w, r, status, &vm.FlashViewModel{Kind: "error", Message: flashMessage(err)})
		return
	}

	if result.ID != 0 {
		http.Redirect(w, r, fmt.Sprintf("/app/runs/%d", result.ID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?op="+string(op)+"&dispatched=1", http.StatusSeeOther)
}

// Run renders a single run. The page refreshes itself until the run completes.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(r.PathValue("runId"), 10, 64)
	if err != nil || runID <= 0 {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	status, err := h.workflows.GetStatus(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to load run", "run_id", runID, "error", err)
		http.Error(w, flashMessage(err), http.StatusInternalServerError)
		return
	}

	page := vm.RunPageViewModel{Run: toRunViewModel(status)}
	if !status.IsTerminal() {
		page.RefreshSeconds = runRefreshSeconds
	}

	h.render(w, r, http.StatusOK,
		templates.Layout(fmt.Sprintf("Run #%d", status.RunNumber), page.RefreshSeconds, pages.Run(page)))
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, flash *vm.FlashViewModel) {
	ctx := r.Context()

	selected, ok := model.ParseOperation(r.URL.Query().Get("op"))
	if !ok {
		selected = model.OperationClone
	}

	if flash == nil && r.URL.Query().Get("dispatched") == "1" {
		flash = &vm.FlashViewModel{Kind: "info", Message: "Workflow triggered successfully. The run will appear below shortly."}
	}

	data := vm.DashboardViewModel{
		Operations: toOperationViewModels(selected),
		SelectedOp: string(selected),
		Runs:       []vm.RunViewModel{},
		Dispatches: []vm.DispatchViewModel{},
		CSRFToken:  csrfToken(w, r),
		Flash:      flash,
	}

	runs, err := h.workflows.ListRecentRuns(ctx, selected, dashboardListLimit)
	if err != nil {
		h.logger.Error("failed to list runs", "operation", selected, "error", err)
		data.RunsError = flashMessage(err)
	}
	for _, run := range runs {
		data.Runs = append(data.Runs, toRunViewModel(run))
	}

	records, err := h.workflows.RecentDispatches(ctx, dashboardListLimit)
	if err != nil {
		h.logger.Error("failed to list dispatches", "error", err)
		data.DispatchesError = "Dispatch log unavailable"
	}
	for _, rec := range records {
		data.Dispatches = append(data.Dispatches, toDispatchViewModel(rec))
	}

	h.render(w, r, status, templates.Layout("wpdispatch", 0, pages.Dashboard(data)))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
	}
}

func flashMessage(err error) string {
	var wfErr *model.WorkflowError
	if errors.As(err, &wfErr) && wfErr.Message != "" {
		return wfErr.Message
	}
	return err.Error()
}

// normalizeList turns "a, b ,c" into "a,b,c".
func normalizeList(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
