package driven

import (
	"context"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
)

// DispatchStore defines the driven port for the dispatch audit log.
type DispatchStore interface {
	// Record appends a dispatch and returns it with its assigned ID.
	Record(ctx context.Context, rec model.DispatchRecord) (model.DispatchRecord, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.DispatchRecord, error)
}
