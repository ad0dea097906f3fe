package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	githubadapter "github.com/ericfisherdev/wpdispatch/internal/adapter/driven/github"
	"github.com/ericfisherdev/wpdispatch/internal/application"
	"github.com/ericfisherdev/wpdispatch/internal/config"
	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

func watchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "poll the run until it completes",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "polling interval for --watch",
			Value: application.DefaultWatchInterval,
		},
	}
}

func dispatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "dispatch",
		Usage:     "trigger the workflow bound to an operation",
		ArgsUsage: "<operation>",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "workflow input as name=value, repeatable",
			},
		}, watchFlags()...),
		Action: runDispatch,
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show the status of a workflow run",
		ArgsUsage: "<run id>",
		Flags:     watchFlags(),
		Action:    runStatus,
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "list recent runs of an operation's workflow",
		ArgsUsage: "<operation | workflow file>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "number of runs to show",
				Value:   application.DefaultRunLimit,
			},
		},
		Action: runRuns,
	}
}

func operationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "operations",
		Usage: "list the operations and their workflow files",
		Action: func(_ context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			for _, op := range model.Operations() {
				wf, _ := op.Workflow()
				fmt.Fprintf(w, "%-14s %s\n", op, wf)
			}
			return nil
		},
	}
}

// newWorkflowService builds a service from the WPDISPATCH_* environment.
// The CLI does not write the dispatch log.
func newWorkflowService(ctx context.Context) (*application.WorkflowService, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	client, err := githubadapter.NewClient(
		cfg.GitHub.Token,
		cfg.GitHub.Owner,
		cfg.GitHub.Repo,
		cfg.GitHub.APIURL,
		cfg.RateLimitMaxWait,
	)
	if err != nil {
		return nil, err
	}

	return application.NewWorkflowService(client, nil), nil
}

func runDispatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("dispatch takes exactly one operation, got %d arguments", cmd.Args().Len())
	}

	inputs, err := parseInputs(cmd.StringSlice("input"))
	if err != nil {
		return err
	}

	svc, err := newWorkflowService(ctx)
	if err != nil {
		return err
	}

	req := model.DispatchRequest{Operation: model.Operation(cmd.Args().First()), Inputs: inputs}
	result, err := svc.Dispatch(ctx, req)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	printDispatch(w, result)

	if !cmd.Bool("watch") {
		return nil
	}
	if result.ID == 0 {
		fmt.Fprintln(w, "run not registered yet; use `wpconsole runs` to find it")
		return nil
	}
	return watch(ctx, w, svc, result.ID, cmd.Duration("interval"))
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	runID, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || runID <= 0 {
		return fmt.Errorf("invalid run id %q", cmd.Args().First())
	}

	svc, err := newWorkflowService(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if cmd.Bool("watch") {
		return watch(ctx, w, svc, runID, cmd.Duration("interval"))
	}

	status, err := svc.GetStatus(ctx, runID)
	if err != nil {
		return err
	}
	printRun(w, status)
	return nil
}

func runRuns(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	op, ok := model.ParseOperation(name)
	if !ok {
		op = model.Operation(name)
	}

	svc, err := newWorkflowService(ctx)
	if err != nil {
		return err
	}

	runs, err := svc.ListRecentRuns(ctx, op, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs")
		return nil
	}
	for _, run := range runs {
		printRun(w, run)
	}
	return nil
}

func watch(ctx context.Context, w io.Writer, svc *application.WorkflowService, runID int64, interval time.Duration) error {
	var last string
	final, err := application.WatchRun(ctx, svc, runID, interval, func(s model.RunStatus) {
		// Only print transitions.
		if s.Message != last {
			last = s.Message
			printRun(w, s)
		}
	})
	if err != nil {
		return err
	}
	if final.Conclusion != model.RunConclusionSuccess {
		return fmt.Errorf("run %d finished: %s", runID, final.Message)
	}
	return nil
}

// parseInputs converts name=value pairs into workflow inputs, keeping order.
func parseInputs(raw []string) ([]model.Input, error) {
	inputs := make([]model.Input, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("input %q must be in name=value form", kv)
		}
		inputs = append(inputs, model.Input{Name: name, Value: value})
	}
	return inputs, nil
}

func printDispatch(w io.Writer, r model.DispatchResult) {
	fmt.Fprintf(w, "%s: %s dispatched on %s\n", r.Operation, r.Workflow, r.Ref)
	if r.ID != 0 {
		fmt.Fprintf(w, "  run:  %d\n", r.ID)
	}
	fmt.Fprintf(w, "  url:  %s\n", r.HTMLURL)
}

func printRun(w io.Writer, s model.RunStatus) {
	fmt.Fprintf(w, "#%-5d %-12d %-40s %s", s.RunNumber, s.ID, s.Message, s.HeadBranch)
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  started %s", humanize.Time(s.CreatedAt))
	}
	fmt.Fprintln(w)
}
