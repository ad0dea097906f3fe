package application

import (
	"context"
	"time"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// DefaultWatchInterval is the polling interval used by WatchRun when none is given.
const DefaultWatchInterval = 5 * time.Second

// RunStatusGetter fetches the current status of a workflow run.
// *WorkflowService satisfies it.
type RunStatusGetter interface {
	GetStatus(ctx context.Context, runID int64) (model.RunStatus, error)
}

// WatchRun polls the run until it completes, the context is canceled, or a
// status fetch fails. onUpdate, if non-nil, is called with every observed
// status. It returns the last observed status.
func WatchRun(
	ctx context.Context,
	getter RunStatusGetter,
	runID int64,
	interval time.Duration,
	onUpdate func(model.RunStatus),
) (model.RunStatus, error) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := getter.GetStatus(ctx, runID)
		if err != nil {
			return status, err
		}

		if onUpdate != nil {
			onUpdate(status)
		}

		if status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
