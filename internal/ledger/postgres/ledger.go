// Package postgres stores the run ledger in Postgres via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recmerge/internal/ledger"
)

func init() {
	ledger.Register("postgres", New)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recmerge_runs (
		id UUID PRIMARY KEY,
		mode TEXT NOT NULL,
		legacy_path TEXT NOT NULL,
		canonical_path TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		legacy_count INTEGER NOT NULL,
		canonical_count INTEGER NOT NULL,
		missing_count INTEGER NOT NULL,
		extra_count INTEGER NOT NULL,
		inserted_count INTEGER NOT NULL,
		backup_path TEXT NOT NULL DEFAULT '',
		failure TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS recmerge_run_entries (
		run_id UUID NOT NULL REFERENCES recmerge_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		record_key TEXT NOT NULL,
		title TEXT NOT NULL,
		action TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS recmerge_run_entries_key_idx ON recmerge_run_entries (record_key)`,
}

const (
	insertRunSQL = `INSERT INTO recmerge_runs
		(id, mode, legacy_path, canonical_path, started_at, finished_at,
		 legacy_count, canonical_count, missing_count, extra_count, inserted_count, backup_path, failure)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertEntrySQL = `INSERT INTO recmerge_run_entries
		(run_id, seq, record_key, title, action, region)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// Ledger implements ledger.Ledger for Postgres.
type Ledger struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN. Connections are established lazily.
func New(ctx context.Context, cfg ledger.Config) (ledger.Ledger, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Ledger{pool: pool}, nil
}

// Close closes the connection pool.
func (l *Ledger) Close() {
	l.pool.Close()
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: create ledger schema: %w", err)
		}
	}
	return nil
}

// RecordRun inserts the run and queues every entry in one batch inside a
// transaction.
func (l *Ledger) RecordRun(ctx context.Context, run ledger.Run) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, buildBatch(run)).Close(); err != nil {
		return fmt.Errorf("postgres: record run %s: %w", run.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// buildBatch queues the run row followed by its entries. It is pure so
// statement shape and argument order can be tested without a server.
func buildBatch(run ledger.Run) *pgx.Batch {
	b := &pgx.Batch{}
	b.Queue(insertRunSQL, runArgs(run)...)
	for i, e := range run.Entries {
		b.Queue(insertEntrySQL, run.ID, i, e.Key, e.Title, string(e.Action), e.Region)
	}
	return b
}

func runArgs(run ledger.Run) []any {
	return []any{
		run.ID, run.Mode, run.Legacy, run.Canonical,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.LegacyCount, run.CanonicalCount, run.Missing, run.Extra, run.Inserted, run.Backup, run.Failure,
	}
}
