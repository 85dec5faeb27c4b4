package ledger

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	schemaErr error
	closed    bool
	runs      []Run
}

func (f *fakeLedger) EnsureSchema(context.Context) error { return f.schemaErr }

func (f *fakeLedger) RecordRun(_ context.Context, r Run) error {
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeLedger) Close() { f.closed = true }

// Registration is process-global, so kinds used here are unique to this file.
func TestRegisterAndNew(t *testing.T) {
	fl := &fakeLedger{}
	Register("test-ok", func(context.Context, Config) (Ledger, error) { return fl, nil })

	l, err := New(context.Background(), Config{Kind: "test-ok"})
	require.NoError(t, err)
	require.Same(t, fl, l)

	kinds := Kinds()
	sort.Strings(kinds)
	require.Contains(t, kinds, "test-ok")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Kind: "nope"})
	require.ErrorContains(t, err, "unsupported ledger.kind=nope")
}

func TestRegister_Panics(t *testing.T) {
	Register("test-dup", func(context.Context, Config) (Ledger, error) { return &fakeLedger{}, nil })

	require.Panics(t, func() { Register("", func(context.Context, Config) (Ledger, error) { return nil, nil }) })
	require.Panics(t, func() { Register("test-nil", nil) })
	require.Panics(t, func() {
		Register("test-dup", func(context.Context, Config) (Ledger, error) { return nil, nil })
	})
}

// TestOpen_SchemaFailureCloses verifies a backend is not leaked when its
// schema cannot be created.
func TestOpen_SchemaFailureCloses(t *testing.T) {
	boom := errors.New("boom")
	fl := &fakeLedger{schemaErr: boom}
	Register("test-schema", func(context.Context, Config) (Ledger, error) { return fl, nil })

	_, err := Open(context.Background(), Config{Kind: "test-schema"})
	require.ErrorIs(t, err, boom)
	require.True(t, fl.closed)
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	require.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}
