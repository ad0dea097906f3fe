package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	vm "github.com/ericfisherdev/wpdispatch/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// operationTitles are the headings shown on the dispatch forms.
var operationTitles = map[model.Operation]string{
	model.OperationClone:         "Clone site",
	model.OperationLocalClone:    "Local clone",
	model.OperationBackup:        "Backup",
	model.OperationUpdatePlugins: "Update plugins",
	model.OperationUpdateThemes:  "Update themes",
}

// operationFields lists the form inputs each operation accepts.
var operationFields = map[model.Operation][]vm.FieldViewModel{
	model.OperationClone: {
		{Name: model.InputSourceURL, Label: "Source URL", Placeholder: "https://example.com", Required: true},
		{Name: model.InputTargetRepo, Label: "Target repository", Placeholder: "owner/site", Required: true},
		{Name: model.InputTargetBranch, Label: "Target branch", Placeholder: model.DefaultRef},
	},
	model.OperationLocalClone: {
		{Name: model.InputSourceURL, Label: "Source URL", Placeholder: "https://example.com", Required: true},
		{Name: model.InputTargetBranch, Label: "Target branch", Placeholder: model.DefaultRef},
	},
	model.OperationBackup: {
		{Name: model.InputSiteURL, Label: "Site URL", Placeholder: "https://example.com"},
	},
	model.OperationUpdatePlugins: {
		{Name: model.InputSiteURL, Label: "Site URL", Placeholder: "https://example.com", Required: true},
		{Name: model.InputPlugins, Label: "Plugins", Placeholder: "woocommerce, akismet", Hint: "Comma separated; empty updates all"},
	},
	model.OperationUpdateThemes: {
		{Name: model.InputSiteURL, Label: "Site URL", Placeholder: "https://example.com", Required: true},
		{Name: model.InputThemes, Label: "Themes", Placeholder: "storefront", Hint: "Comma separated; empty updates all"},
	},
}

func toOperationViewModels(selected model.Operation) []vm.OperationViewModel {
	ops := model.Operations()
	out := make([]vm.OperationViewModel, 0, len(ops))
	for _, op := range ops {
		wf, _ := op.Workflow()
		out = append(out, vm.OperationViewModel{
			Name:       string(op),
			Title:      operationTitles[op],
			Workflow:   string(wf),
			FormAction: "/app/dispatch/" + string(op),
			RunsPath:   "/?op=" + string(op),
			Selected:   op == selected,
			Fields:     operationFields[op],
		})
	}
	return out
}

func toRunViewModel(s model.RunStatus) vm.RunViewModel {
	return vm.RunViewModel{
		ID:          s.ID,
		RunNumber:   s.RunNumber,
		Status:      s.Status,
		Conclusion:  s.Conclusion,
		Message:     s.Message,
		TitleHTML:   RenderInlineMarkdown(s.DisplayTitle),
		Branch:      s.HeadBranch,
		URL:         s.HTMLURL,
		DetailPath:  fmt.Sprintf("/app/runs/%d", s.ID),
		Started:     relativeTime(s.CreatedAt),
		Updated:     relativeTime(s.UpdatedAt),
		IsTerminal:  s.IsTerminal(),
		StatusClass: statusClass(s),
	}
}

func toDispatchViewModel(rec model.DispatchRecord) vm.DispatchViewModel {
	pairs := make([]string, 0, len(rec.Inputs))
	for _, in := range rec.Inputs {
		if in.Value == "" {
			continue
		}
		pairs = append(pairs, in.Name+"="+in.Value)
	}

	d := vm.DispatchViewModel{
		Operation: string(rec.Operation),
		Workflow:  string(rec.Workflow),
		Ref:       rec.Ref,
		Inputs:    strings.Join(pairs, " "),
		URL:       rec.HTMLURL,
		When:      relativeTime(rec.DispatchedAt),
	}
	if rec.RunID != 0 {
		d.DetailPath = fmt.Sprintf("/app/runs/%d", rec.RunID)
	}
	return d
}

func statusClass(s model.RunStatus) string {
	if !s.IsTerminal() {
		return "status-running"
	}
	switch s.Conclusion {
	case model.RunConclusionSuccess:
		return "status-success"
	case model.RunConclusionFailure, model.RunConclusionCancelled:
		return "status-failure"
	default:
		return "status-neutral"
	}
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
