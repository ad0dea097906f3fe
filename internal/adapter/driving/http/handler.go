package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/wpdispatch/internal/application"
	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// maxBodyBytes caps the size of a JSON request body.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the JSON API.
type Handler struct {
	workflows *application.WorkflowService
	wordpress driven.WordPressClient
	logger    *slog.Logger
}

// NewHandler creates a Handler. wordpress may be nil when no WordPress site is
// configured; its routes then answer 503.
func NewHandler(workflows *application.WorkflowService, wordpress driven.WordPressClient, logger *slog.Logger) *Handler {
	return &Handler{
		workflows: workflows,
		wordpress: wordpress,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers every /api route on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/workflows/clone", h.TriggerClone)
	mux.HandleFunc("POST /api/workflows/update-plugins", h.TriggerUpdatePlugins)
	mux.HandleFunc("POST /api/workflows/update-themes", h.TriggerUpdateThemes)
	mux.HandleFunc("POST /api/workflows/backup", h.TriggerBackup)
	mux.HandleFunc("GET /api/workflows/status/{runId}", h.GetRunStatus)
	mux.HandleFunc("GET /api/workflows/runs/{workflowName}", h.ListRuns)
	mux.HandleFunc("GET /api/workflows/operations", h.ListOperations)
	mux.HandleFunc("GET /api/workflows/dispatches", h.ListDispatches)

	mux.HandleFunc("GET /api/wordpress/posts", h.WordPressPosts)
	mux.HandleFunc("GET /api/wordpress/products", h.WordPressProducts)
	mux.HandleFunc("GET /api/wordpress/info", h.WordPressInfo)

	mux.HandleFunc("GET /api/health", h.Health)
}

// TriggerClone dispatches the site clone workflow.
func (h *Handler) TriggerClone(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to trigger clone workflow"

	var req CloneRequest
	if !h.decode(w, r, label, &req) {
		return
	}
	if req.SourceURL == "" || req.TargetRepo == "" {
		writeError(w, http.StatusBadRequest, label, "sourceUrl and targetRepo are required")
		return
	}

	h.dispatch(w, r, label, model.NewDispatchRequest(model.OperationClone,
		model.InputSourceURL, req.SourceURL,
		model.InputTargetRepo, req.TargetRepo,
		model.InputTargetBranch, req.TargetBranch,
	))
}

// TriggerUpdatePlugins dispatches the plugin update workflow.
func (h *Handler) TriggerUpdatePlugins(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to trigger plugin update workflow"

	var req UpdatePluginsRequest
	if !h.decode(w, r, label, &req) {
		return
	}
	if req.SiteURL == "" {
		writeError(w, http.StatusBadRequest, label, "siteUrl is required")
		return
	}

	h.dispatch(w, r, label, model.NewDispatchRequest(model.OperationUpdatePlugins,
		model.InputSiteURL, req.SiteURL,
		model.InputPlugins, strings.Join(req.Plugins, ","),
	))
}

// TriggerUpdateThemes dispatches the theme update workflow.
func (h *Handler) TriggerUpdateThemes(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to trigger theme update workflow"

	var req UpdateThemesRequest
	if !h.decode(w, r, label, &req) {
		return
	}
	if req.SiteURL == "" {
		writeError(w, http.StatusBadRequest, label, "siteUrl is required")
		return
	}

	h.dispatch(w, r, label, model.NewDispatchRequest(model.OperationUpdateThemes,
		model.InputSiteURL, req.SiteURL,
		model.InputThemes, strings.Join(req.Themes, ","),
	))
}

// TriggerBackup dispatches the backup workflow.
func (h *Handler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to trigger backup workflow"

	var req BackupRequest
	if !h.decode(w, r, label, &req) {
		return
	}

	h.dispatch(w, r, label, model.NewDispatchRequest(model.OperationBackup,
		model.InputSiteURL, req.SiteURL,
	))
}

// GetRunStatus returns the current status of a workflow run.
func (h *Handler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to get workflow status"

	runID, err := strconv.ParseInt(r.PathValue("runId"), 10, 64)
	if err != nil || runID <= 0 {
		writeError(w, http.StatusBadRequest, label, "invalid run id")
		return
	}

	status, err := h.workflows.GetStatus(r.Context(), runID)
	if err != nil {
		h.writeWorkflowError(w, label, err)
		return
	}

	writeJSON(w, http.StatusOK, toRunStatusResponse(status))
}

// ListRuns returns the most recent runs of a workflow. The path segment may
// be an operation name or its workflow file name.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to get workflow runs"

	name := r.PathValue("workflowName")
	op, ok := model.ParseOperation(name)
	if !ok {
		op = model.Operation(name)
	}

	runs, err := h.workflows.ListRecentRuns(r.Context(), op, application.DefaultRunLimit)
	if err != nil {
		h.writeWorkflowError(w, label, err)
		return
	}

	resp := make([]RunStatusResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunStatusResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListOperations returns the operation to workflow table.
func (h *Handler) ListOperations(w http.ResponseWriter, _ *http.Request) {
	ops := model.Operations()
	resp := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		wf, _ := op.Workflow()
		resp = append(resp, OperationResponse{Operation: string(op), Workflow: string(wf)})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListDispatches returns the most recent recorded dispatches. An optional
// ?limit= query parameter bounds the result.
func (h *Handler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	const label = "Failed to list dispatches"

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, label, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.workflows.RecentDispatches(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list dispatches", "error", err)
		writeError(w, http.StatusInternalServerError, label, err.Error())
		return
	}

	resp := make([]DispatchRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toDispatchRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// decode reads a JSON body into v. It writes a 400 response and returns false
// when the body is malformed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, label string, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, label, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, label string, req model.DispatchRequest) {
	result, err := h.workflows.Dispatch(r.Context(), req)
	if err != nil {
		h.writeWorkflowError(w, label, err)
		return
	}

	writeJSON(w, http.StatusOK, toDispatchResponse(result))
}

// writeWorkflowError maps a workflow service error to its HTTP status.
func (h *Handler) writeWorkflowError(w http.ResponseWriter, label string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrUnknownOperation) {
		status = http.StatusBadRequest
	}

	message := err.Error()
	var wfErr *model.WorkflowError
	if errors.As(err, &wfErr) {
		message = wfErr.Message
	}

	h.logger.Error(label, "error", err)
	writeError(w, status, label, message)
}
