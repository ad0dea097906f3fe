// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// FieldViewModel is a single input of a dispatch form.
type FieldViewModel struct {
	Name        string
	Label       string
	Placeholder string
	Required    bool
	Hint        string
}

// OperationViewModel holds a dispatch form for one operation.
type OperationViewModel struct {
	Name       string
	Title      string
	Workflow   string
	FormAction string
	RunsPath   string
	Selected   bool
	Fields     []FieldViewModel
}

// RunViewModel holds presentation-ready data for a workflow run.
type RunViewModel struct {
	ID          int64
	RunNumber   int
	Status      string
	Conclusion  string // Empty while the run is not completed.
	Message     string
	TitleHTML   string // Sanitized HTML of the run's display title.
	Branch      string
	URL         string
	DetailPath  string
	Started     string // Relative, e.g. "3 minutes ago".
	Updated     string
	IsTerminal  bool
	StatusClass string
}

// DispatchViewModel holds presentation-ready data for a logged dispatch.
type DispatchViewModel struct {
	Operation  string
	Workflow   string
	Ref        string
	Inputs     string
	URL        string
	DetailPath string // Empty when the run id was not resolved.
	When       string
}

// FlashViewModel is a one-off notice shown at the top of a page.
type FlashViewModel struct {
	Kind    string // "error" or "info"
	Message string
}

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Operations      []OperationViewModel
	SelectedOp      string
	Runs            []RunViewModel
	RunsError       string
	Dispatches      []DispatchViewModel
	DispatchesError string
	CSRFToken       string
	Flash           *FlashViewModel
}

// RunPageViewModel holds the data of the run detail page.
type RunPageViewModel struct {
	Run            RunViewModel
	RefreshSeconds int // Zero disables auto refresh.
}
