// Package sqlite stores the run ledger in a SQLite file via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"recmerge/internal/ledger"
)

// Timestamps are stored as RFC3339Nano text; SQLite has no timestamp type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS recmerge_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		legacy_path TEXT NOT NULL,
		canonical_path TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		legacy_count INTEGER NOT NULL,
		canonical_count INTEGER NOT NULL,
		missing_count INTEGER NOT NULL,
		extra_count INTEGER NOT NULL,
		inserted_count INTEGER NOT NULL,
		backup_path TEXT NOT NULL DEFAULT '',
		failure TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS recmerge_run_entries (
		run_id TEXT NOT NULL REFERENCES recmerge_runs(id),
		seq INTEGER NOT NULL,
		record_key TEXT NOT NULL,
		title TEXT NOT NULL,
		action TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
}

const (
	insertRunSQL = `INSERT INTO recmerge_runs
		(id, mode, legacy_path, canonical_path, started_at, finished_at,
		 legacy_count, canonical_count, missing_count, extra_count, inserted_count, backup_path, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertEntrySQL = `INSERT INTO recmerge_run_entries
		(run_id, seq, record_key, title, action, region)
		VALUES (?, ?, ?, ?, ?, ?)`
)

// Ledger implements ledger.Ledger for SQLite.
type Ledger struct {
	db *sql.DB
}

func init() {
	ledger.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a file path or a modernc DSN).
func New(ctx context.Context, cfg ledger.Config) (ledger.Ledger, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() { _ = l.db.Close() }

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: create ledger table: %w", err)
		}
	}
	return nil
}

// RecordRun inserts the run row and all entry rows in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, run ledger.Run) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.Mode, run.Legacy, run.Canonical,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.LegacyCount, run.CanonicalCount, run.Missing, run.Extra, run.Inserted, run.Backup, run.Failure,
	); err != nil {
		return fmt.Errorf("sqlite: insert run %s: %w", run.ID, err)
	}

	if len(run.Entries) > 0 {
		stmt, perr := tx.PrepareContext(ctx, insertEntrySQL)
		if perr != nil {
			err = fmt.Errorf("sqlite: prepare entry insert: %w", perr)
			return err
		}
		defer stmt.Close()

		for i, e := range run.Entries {
			if _, err = stmt.ExecContext(ctx, run.ID, i, e.Key, e.Title, string(e.Action), e.Region); err != nil {
				return fmt.Errorf("sqlite: insert entry %d: %w", i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
