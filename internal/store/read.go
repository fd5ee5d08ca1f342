package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// ListRuns returns the most recent runs, newest first. A limit of zero
// or less returns every archived run.
//
// Returns an empty slice (not nil) when the archive is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, module, kind, seed, status, error, max_samples, max_steps, engine_version, created_at_ms
		FROM runs
		ORDER BY created_at_ms DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns an archived run and its retained traces in retention
// order.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, []TraceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, module, kind, seed, status, error, max_samples, max_steps, engine_version, created_at_ms
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, status, states, itf
		FROM run_traces
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("query run traces: %w", err)
	}
	defer rows.Close()

	traces := []TraceRecord{}
	for rows.Next() {
		var tr TraceRecord
		var itf string
		if err := rows.Scan(&tr.Seq, &tr.Status, &tr.States, &itf); err != nil {
			return RunRecord{}, nil, fmt.Errorf("scan run trace: %w", err)
		}
		tr.ITF = []byte(itf)
		traces = append(traces, tr)
	}

	if err := rows.Err(); err != nil {
		return RunRecord{}, nil, fmt.Errorf("iterate run traces: %w", err)
	}

	return run, traces, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var run RunRecord
	var errText sql.NullString
	var createdMs int64

	err := sc.Scan(
		&run.ID,
		&run.Module,
		&run.Kind,
		&run.Seed,
		&run.Status,
		&errText,
		&run.MaxSamples,
		&run.MaxSteps,
		&run.EngineVersion,
		&createdMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	run.Error = errText.String
	run.CreatedAt = time.UnixMilli(createdMs).UTC()
	return run, nil
}
