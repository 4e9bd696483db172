// Package db persists execution-run history in PostgreSQL. The store
// implements basket.RunRecorder and reads back the activity feed the
// API serves.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackfolio/basketd/service/basket"
)

// Store provides database operations for run history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Run is one execution run as persisted.
type Run struct {
	RunID       string
	Wallet      string
	BasketID    string
	Mode        basket.Mode
	TotalUSD    float64
	Total       int
	Status      basket.RunStatus
	Error       *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Confirmation is one confirmed step of a run, in completion order.
type Confirmation struct {
	RunID          string
	Seq            int
	AssetMint      string
	ConfirmationID string
	CreatedAt      time.Time
}

// Schema creates the run-history tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS execution_runs (
	run_id       TEXT PRIMARY KEY,
	wallet       TEXT NOT NULL,
	basket_id    TEXT NOT NULL DEFAULT '',
	mode         TEXT NOT NULL,
	total_usd    DOUBLE PRECISION NOT NULL,
	total        INT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'in_progress',
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_execution_runs_wallet ON execution_runs (wallet, created_at DESC);

CREATE TABLE IF NOT EXISTS run_confirmations (
	run_id          TEXT NOT NULL REFERENCES execution_runs (run_id) ON DELETE CASCADE,
	seq             INT NOT NULL,
	asset_mint      TEXT NOT NULL,
	confirmation_id TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, seq)
);
`

// EnsureSchema applies the schema. Called at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// StartRun inserts a new run in in_progress state. Run tokens restart with
// the process, so a colliding ID supersedes the stale row and its steps.
func (s *Store) StartRun(ctx context.Context, rec basket.RunRecord) error {
	const query = `
		INSERT INTO execution_runs (run_id, wallet, basket_id, mode, total_usd, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE
		SET wallet = EXCLUDED.wallet, basket_id = EXCLUDED.basket_id,
			mode = EXCLUDED.mode, total_usd = EXCLUDED.total_usd,
			total = EXCLUDED.total, status = 'in_progress', error = NULL,
			created_at = NOW(), completed_at = NULL`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("start run %s: %w", rec.RunID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query,
		rec.RunID, rec.Wallet, rec.BasketID, string(rec.Mode), rec.TotalUSD, rec.Total,
	); err != nil {
		return fmt.Errorf("start run %s: %w", rec.RunID, err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM run_confirmations WHERE run_id = $1`, rec.RunID,
	); err != nil {
		return fmt.Errorf("start run %s: clear steps: %w", rec.RunID, err)
	}
	return tx.Commit(ctx)
}

// RecordConfirmation appends one confirmation to a run. Seq is the row's
// position in the allocation order; confirmations arrive strictly in that
// order and are never rewritten.
func (s *Store) RecordConfirmation(ctx context.Context, runID string, seq int, assetMint, confirmationID string) error {
	const query = `
		INSERT INTO run_confirmations (run_id, seq, asset_mint, confirmation_id)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, runID, seq, assetMint, confirmationID)
	if err != nil {
		return fmt.Errorf("record confirmation %s/%d: %w", runID, seq, err)
	}
	return nil
}

// CompleteRun marks a run terminal with its status and optional error.
func (s *Store) CompleteRun(ctx context.Context, runID string, status basket.RunStatus, errMsg string) error {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	const query = `
		UPDATE execution_runs
		SET status = $1, error = $2, completed_at = NOW()
		WHERE run_id = $3`

	tag, err := s.pool.Exec(ctx, query, string(status), errPtr, runID)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: not found", runID)
	}
	return nil
}

const runSelectCols = `run_id, wallet, basket_id, mode, total_usd, total, status, error, created_at, completed_at`

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var mode, status string
	if err := row.Scan(&r.RunID, &r.Wallet, &r.BasketID, &mode, &r.TotalUSD,
		&r.Total, &status, &r.Error, &r.CreatedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	r.Mode = basket.Mode(mode)
	r.Status = basket.RunStatus(status)
	return &r, nil
}

// GetRun fetches one run with its confirmations in step order.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, []Confirmation, error) {
	run, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runSelectCols+` FROM execution_runs WHERE run_id = $1`, runID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, fmt.Errorf("run %s: not found", runID)
		}
		return nil, nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, seq, asset_mint, confirmation_id, created_at
		FROM run_confirmations
		WHERE run_id = $1
		ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("get confirmations %s: %w", runID, err)
	}
	defer rows.Close()

	var confs []Confirmation
	for rows.Next() {
		var c Confirmation
		if err := rows.Scan(&c.RunID, &c.Seq, &c.AssetMint, &c.ConfirmationID, &c.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan confirmation: %w", err)
		}
		confs = append(confs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate confirmations: %w", err)
	}

	return run, confs, nil
}

// ListRunsParams contains filter and pagination parameters.
type ListRunsParams struct {
	Wallet string
	Limit  int32
	Offset int32
}

// ListRuns lists runs newest first, optionally filtered by wallet.
func (s *Store) ListRuns(ctx context.Context, params ListRunsParams) ([]*Run, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if params.Wallet != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT `+runSelectCols+` FROM execution_runs
			WHERE wallet = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`, params.Wallet, limit, params.Offset)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+runSelectCols+` FROM execution_runs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`, limit, params.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
