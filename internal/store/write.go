package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteRun inserts a run and its retained traces in one transaction, so
// the archive never holds a run with half its traces.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - replaying the same
// run id is silently ignored.
func (s *Store) WriteRun(ctx context.Context, run RunRecord, traces []TraceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, module, kind, seed, status, error, max_samples, max_steps, engine_version, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Module,
		run.Kind,
		run.Seed,
		run.Status,
		errText,
		run.MaxSamples,
		run.MaxSteps,
		run.EngineVersion,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if inserted == 0 {
		// The run already exists; its traces do too.
		return nil
	}

	for _, tr := range traces {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_traces (run_id, seq, status, states, itf)
			VALUES (?, ?, ?, ?, ?)
		`,
			run.ID,
			tr.Seq,
			tr.Status,
			tr.States,
			string(tr.ITF),
		)
		if err != nil {
			return fmt.Errorf("write run trace %d: %w", tr.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
