// Package mssql stores the run ledger in Microsoft SQL Server.
//
// The package does not register a database/sql driver itself; the
// "sqlserver" driver comes from github.com/microsoft/go-mssqldb, linked by
// recmerge/internal/ledger/all.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"recmerge/internal/ledger"
)

func init() {
	ledger.Register("mssql", New)
}

// SQL Server has no CREATE TABLE IF NOT EXISTS; guard with OBJECT_ID.
var schema = []string{
	`IF OBJECT_ID(N'dbo.recmerge_runs', N'U') IS NULL
	CREATE TABLE dbo.recmerge_runs (
		id UNIQUEIDENTIFIER NOT NULL PRIMARY KEY,
		mode NVARCHAR(16) NOT NULL,
		legacy_path NVARCHAR(1024) NOT NULL,
		canonical_path NVARCHAR(1024) NOT NULL,
		started_at DATETIMEOFFSET NOT NULL,
		finished_at DATETIMEOFFSET NOT NULL,
		legacy_count INT NOT NULL,
		canonical_count INT NOT NULL,
		missing_count INT NOT NULL,
		extra_count INT NOT NULL,
		inserted_count INT NOT NULL,
		backup_path NVARCHAR(1024) NOT NULL DEFAULT N'',
		failure NVARCHAR(2048) NOT NULL DEFAULT N''
	)`,
	`IF OBJECT_ID(N'dbo.recmerge_run_entries', N'U') IS NULL
	CREATE TABLE dbo.recmerge_run_entries (
		run_id UNIQUEIDENTIFIER NOT NULL REFERENCES dbo.recmerge_runs(id),
		seq INT NOT NULL,
		record_key NVARCHAR(2048) NOT NULL,
		title NVARCHAR(1024) NOT NULL,
		action NVARCHAR(16) NOT NULL,
		region NVARCHAR(128) NOT NULL DEFAULT N'',
		CONSTRAINT pk_recmerge_run_entries PRIMARY KEY (run_id, seq)
	)`,
}

const (
	insertRunSQL = `INSERT INTO dbo.recmerge_runs
		(id, mode, legacy_path, canonical_path, started_at, finished_at,
		 legacy_count, canonical_count, missing_count, extra_count, inserted_count, backup_path, failure)
		VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13)`

	insertEntrySQL = `INSERT INTO dbo.recmerge_run_entries
		(run_id, seq, record_key, title, action, region)
		VALUES (@p1, @p2, @p3, @p4, @p5, @p6)`
)

// Ledger implements ledger.Ledger for SQL Server.
type Ledger struct {
	db dbConn
}

// New opens cfg.DSN with the "sqlserver" driver and checks connectivity.
func New(ctx context.Context, cfg ledger.Config) (ledger.Ledger, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(4)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Ledger{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this ledger.
func (l *Ledger) Close() {
	if l == nil || l.db == nil {
		return
	}
	_ = l.db.Close()
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mssql: create ledger schema: %w", err)
		}
	}
	return nil
}

// RecordRun inserts the run and its entries in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, run ledger.Run) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.Mode, run.Legacy, run.Canonical,
		run.StartedAt, run.FinishedAt,
		run.LegacyCount, run.CanonicalCount, run.Missing, run.Extra, run.Inserted, run.Backup, run.Failure,
	); err != nil {
		return fmt.Errorf("mssql: insert run %s: %w", run.ID, err)
	}

	for i, e := range run.Entries {
		if _, err = tx.ExecContext(ctx, insertEntrySQL, run.ID, i, e.Key, e.Title, string(e.Action), e.Region); err != nil {
			return fmt.Errorf("mssql: insert entry %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("mssql: commit: %w", err)
	}
	return nil
}

// dbConn is the subset of *sql.DB the ledger uses; tests substitute it.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is the subset of *sql.Tx the ledger uses.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }
