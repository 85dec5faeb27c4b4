// Package ledger records an audit trail of compare and merge runs in a SQL
// database. Backends register themselves by kind from their init functions;
// import recmerge/internal/ledger/all to link every backend.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config selects a backend. An empty Kind means no ledger.
type Config struct {
	Kind string
	DSN  string
}

// Action says what happened to one record during a run.
type Action string

const (
	ActionMissing      Action = "missing"      // in legacy, not in canonical
	ActionExtra        Action = "extra"        // in canonical only
	ActionInserted     Action = "inserted"     // written under its region
	ActionUnclassified Action = "unclassified" // no region for its classification value
	ActionUnmerged     Action = "unmerged"     // its region marker was not found
)

// Entry is one record-level line of a run.
type Entry struct {
	Key    string
	Title  string
	Action Action
	Region string
}

// Run is one invocation of compare or merge.
type Run struct {
	ID         string
	Mode       string
	Legacy     string
	Canonical  string
	StartedAt  time.Time
	FinishedAt time.Time

	LegacyCount    int
	CanonicalCount int
	Missing        int
	Extra          int
	Inserted       int

	// Backup is the backup path written by a merge, empty otherwise.
	Backup string
	// Failure is the error that ended the run early, empty on success.
	// Counts stop at the step that failed.
	Failure string

	Entries []Entry
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Ledger is implemented by each backend.
type Ledger interface {
	// EnsureSchema creates the ledger tables if they do not exist.
	EnsureSchema(ctx context.Context) error

	// RecordRun stores run and its entries atomically.
	RecordRun(ctx context.Context, run Run) error

	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Ledger, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty
// kind, a nil factory or a duplicate registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("ledger: Register called with empty kind")
	}
	if f == nil {
		panic("ledger: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("ledger: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Ledger, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("ledger: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported ledger.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Open opens the backend and ensures its schema, closing it again when
// schema creation fails.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	l, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := l.EnsureSchema(ctx); err != nil {
		l.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return l, nil
}
