package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"recmerge/internal/ledger"

	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

// fakeDB records statements; failOn makes the n-th transactional exec fail.
type fakeDB struct {
	calls      []execCall
	failOn     int
	committed  bool
	rolledBack bool
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return nil, errors.New("exec failed")
	}
	return driverResult(1), nil
}

func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) { return f, nil }

func (f *fakeDB) Commit() error {
	f.committed = true
	return nil
}

func (f *fakeDB) Rollback() error {
	f.rolledBack = true
	return nil
}

func (f *fakeDB) Close() error { return nil }

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestRecordRun_Commits(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	l := &Ledger{db: db}
	run := ledger.Run{
		ID:   "4f1c2a6e-8a8b-4d8e-9b57-0f1f7b3c2d11",
		Mode: "merge",
		Entries: []ledger.Entry{
			{Key: "k1", Title: "A", Action: ledger.ActionInserted, Region: "europe"},
			{Key: "k2", Title: "B", Action: ledger.ActionUnmerged, Region: "africa"},
		},
	}

	require.NoError(t, l.RecordRun(context.Background(), run))
	require.True(t, db.committed)
	require.False(t, db.rolledBack)
	require.Len(t, db.calls, 3)
	require.Equal(t, insertRunSQL, db.calls[0].query)
	require.Len(t, db.calls[0].args, 13)
	require.Equal(t, []any{run.ID, 1, "k2", "B", "unmerged", "africa"}, db.calls[2].args)
}

func TestRecordRun_RollsBackOnEntryFailure(t *testing.T) {
	t.Parallel()

	db := &fakeDB{failOn: 2}
	l := &Ledger{db: db}
	err := l.RecordRun(context.Background(), ledger.Run{
		ID:      "x",
		Entries: []ledger.Entry{{Key: "k", Action: ledger.ActionMissing}},
	})

	require.ErrorContains(t, err, "mssql: insert entry 0")
	require.True(t, db.rolledBack)
	require.False(t, db.committed)
}

// TestEnsureSchema verifies both tables are guarded so the call is
// idempotent on a server that already has them.
func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	require.NoError(t, (&Ledger{db: db}).EnsureSchema(context.Background()))
	require.Len(t, db.calls, 2)
	for _, c := range db.calls {
		require.True(t, strings.HasPrefix(c.query, "IF OBJECT_ID("), c.query)
	}
}

func TestPlaceholderCounts(t *testing.T) {
	t.Parallel()

	require.Equal(t, 13, strings.Count(insertRunSQL, "@p"))
	require.Equal(t, 6, strings.Count(insertEntrySQL, "@p"))
}
