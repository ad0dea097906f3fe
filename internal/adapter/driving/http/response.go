package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error","message":"failed to encode response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with a short label and a
// human-readable message.
func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, errorResponse{Error: label, Message: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CloneRequest is the JSON body for the clone endpoint.
type CloneRequest struct {
	SourceURL    string `json:"sourceUrl"`
	TargetRepo   string `json:"targetRepo"`
	TargetBranch string `json:"targetBranch"`
}

// UpdatePluginsRequest is the JSON body for the plugin update endpoint.
type UpdatePluginsRequest struct {
	SiteURL string   `json:"siteUrl"`
	Plugins []string `json:"plugins"`
}

// UpdateThemesRequest is the JSON body for the theme update endpoint.
type UpdateThemesRequest struct {
	SiteURL string   `json:"siteUrl"`
	Themes  []string `json:"themes"`
}

// BackupRequest is the JSON body for the backup endpoint.
type BackupRequest struct {
	SiteURL string `json:"siteUrl"`
}

// DispatchResponse is the JSON representation of an accepted dispatch.
type DispatchResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	HTMLURL      string `json:"html_url"`
	Workflow     string `json:"workflow"`
	Operation    string `json:"operation"`
	Ref          string `json:"ref"`
	DispatchedAt string `json:"dispatched_at"`
}

// RunStatusResponse is the JSON representation of a workflow run.
// Conclusion is null until the run completes.
type RunStatusResponse struct {
	ID           int64   `json:"id"`
	RunNumber    int     `json:"run_number"`
	Status       string  `json:"status"`
	Conclusion   *string `json:"conclusion"`
	Message      string  `json:"message"`
	HTMLURL      string  `json:"html_url"`
	LogsURL      string  `json:"logs_url"`
	HeadBranch   string  `json:"head_branch"`
	Event        string  `json:"event"`
	DisplayTitle string  `json:"display_title"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// OperationResponse pairs an operation with the workflow file it dispatches.
type OperationResponse struct {
	Operation string `json:"operation"`
	Workflow  string `json:"workflow"`
}

// InputResponse is a single recorded workflow input.
type InputResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DispatchRecordResponse is the JSON representation of a logged dispatch.
type DispatchRecordResponse struct {
	ID           int64           `json:"id"`
	Operation    string          `json:"operation"`
	Workflow     string          `json:"workflow"`
	Ref          string          `json:"ref"`
	Inputs       []InputResponse `json:"inputs"`
	RunID        int64           `json:"run_id"`
	HTMLURL      string          `json:"html_url"`
	DispatchedAt string          `json:"dispatched_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toDispatchResponse(r model.DispatchResult) DispatchResponse {
	return DispatchResponse{
		ID:           r.ID,
		Status:       r.Status,
		Message:      r.Message,
		HTMLURL:      r.HTMLURL,
		Workflow:     string(r.Workflow),
		Operation:    string(r.Operation),
		Ref:          r.Ref,
		DispatchedAt: r.DispatchedAt.UTC().Format(time.RFC3339),
	}
}

func toRunStatusResponse(s model.RunStatus) RunStatusResponse {
	var conclusion *string
	if s.Conclusion != "" {
		c := s.Conclusion
		conclusion = &c
	}

	return RunStatusResponse{
		ID:           s.ID,
		RunNumber:    s.RunNumber,
		Status:       s.Status,
		Conclusion:   conclusion,
		Message:      s.Message,
		HTMLURL:      s.HTMLURL,
		LogsURL:      s.LogsURL,
		HeadBranch:   s.HeadBranch,
		Event:        s.Event,
		DisplayTitle: s.DisplayTitle,
		CreatedAt:    formatTime(s.CreatedAt),
		UpdatedAt:    formatTime(s.UpdatedAt),
	}
}

func toDispatchRecordResponse(rec model.DispatchRecord) DispatchRecordResponse {
	inputs := make([]InputResponse, 0, len(rec.Inputs))
	for _, in := range rec.Inputs {
		inputs = append(inputs, InputResponse{Name: in.Name, Value: in.Value})
	}

	return DispatchRecordResponse{
		ID:           rec.ID,
		Operation:    string(rec.Operation),
		Workflow:     string(rec.Workflow),
		Ref:          rec.Ref,
		Inputs:       inputs,
		RunID:        rec.RunID,
		HTMLURL:      rec.HTMLURL,
		DispatchedAt: formatTime(rec.DispatchedAt),
	}
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
