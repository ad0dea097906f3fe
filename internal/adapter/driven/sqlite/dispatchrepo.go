package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DispatchStore = (*DispatchRepo)(nil)

// DispatchRepo is the SQLite implementation of the DispatchStore port interface.
type DispatchRepo struct {
	db *DB
}

// NewDispatchRepo creates a new DispatchRepo backed by the given DB.
func NewDispatchRepo(db *DB) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// inputJSON is the persisted form of a model.Input. A list keeps input order.
type inputJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record appends a dispatch to the log. A zero DispatchedAt is replaced by the
// current time.
func (r *DispatchRepo) Record(ctx context.Context, rec model.DispatchRecord) (model.DispatchRecord, error) {
	const query = `
		INSERT INTO dispatches (operation, workflow, ref, inputs_json, run_id, html_url, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now()
	}
	rec.DispatchedAt = rec.DispatchedAt.UTC()

	inputs := make([]inputJSON, 0, len(rec.Inputs))
	for _, in := range rec.Inputs {
		inputs = append(inputs, inputJSON(in))
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return model.DispatchRecord{}, fmt.Errorf("encode inputs for %s: %w", rec.Operation, err)
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(rec.Operation), string(rec.Workflow), rec.Ref, string(inputsJSON),
		rec.RunID, rec.HTMLURL, rec.DispatchedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.DispatchRecord{}, fmt.Errorf("insert dispatch of %s: %w", rec.Operation, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.DispatchRecord{}, fmt.Errorf("read dispatch id: %w", err)
	}
	rec.ID = id

	return rec, nil
}

// ListRecent returns up to limit dispatches, newest first.
func (r *DispatchRepo) ListRecent(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
	const query = `
		SELECT id, operation, workflow, ref, inputs_json, run_id, html_url, dispatched_at
		FROM dispatches
		ORDER BY dispatched_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	records := []model.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(s scanner) (*model.DispatchRecord, error) {
	var rec model.DispatchRecord
	var operation, workflow, inputsJSON, dispatchedAt string

	err := s.Scan(&rec.ID, &operation, &workflow, &rec.Ref, &inputsJSON, &rec.RunID, &rec.HTMLURL, &dispatchedAt)
	if err != nil {
		return nil, err
	}

	rec.Operation = model.Operation(operation)
	rec.Workflow = model.WorkflowDescriptor(workflow)

	var inputs []inputJSON
	if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
		return nil, fmt.Errorf("decode inputs of dispatch %d: %w", rec.ID, err)
	}
	rec.Inputs = make([]model.Input, 0, len(inputs))
	for _, in := range inputs {
		rec.Inputs = append(rec.Inputs, model.Input(in))
	}

	rec.DispatchedAt, err = time.Parse(time.RFC3339Nano, dispatchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse dispatched_at of dispatch %d: %w", rec.ID, err)
	}

	return &rec, nil
}
