package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"recmerge/internal/config"
	"recmerge/internal/ledger"
	"recmerge/internal/metrics"
	"recmerge/internal/metrics/datadog"
	"recmerge/internal/migrate"
	"recmerge/internal/report"
	"recmerge/internal/source"

	"github.com/spf13/viper"
)

// app holds the state of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	v       *viper.Viper
	cfgPath string
	format  string
	verbose bool

	cfg     config.Config
	log     *zap.Logger
	closers []func()
}

// newLogger builds zap's production JSON logger on w, at debug level when
// verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

// setup resolves configuration and opens the optional collaborators. It is
// called by every subcommand before doing work.
func (a *app) setup(ctx context.Context) error {
	switch a.format {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
	default:
		return usagef("unknown --format %q (want text, json or yaml)", a.format)
	}

	a.log = newLogger(a.stderr, a.verbose)
	a.closers = append(a.closers, func() { _ = a.log.Sync() })

	cfg, err := config.Load(a.v, a.cfgPath)
	if err != nil {
		return usageError{err: err}
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(a.stderr, iss.String())
	}
	if config.HasErrors(issues) {
		return usagef("configuration is invalid")
	}
	a.cfg = cfg

	a.setupMetrics(ctx)
	return nil
}

func (a *app) setupMetrics(ctx context.Context) {
	if a.cfg.Metrics.Backend != "datadog" {
		return
	}
	b, err := datadog.NewBackend(ctx, datadog.Options{JobName: "recmerge", Tags: a.cfg.Metrics.Tags})
	if err != nil {
		a.log.Warn("metrics: datadog init failed; using nop", zap.Error(err))
		return
	}
	metrics.SetBackend(b)
	a.closers = append(a.closers, func() {
		if err := b.Close(); err != nil {
			a.log.Warn("metrics: final flush failed", zap.Error(err))
		}
		metrics.SetBackend(nil)
	})
	a.log.Debug("metrics: datadog backend enabled")
}

// openLedger opens the configured ledger, or returns nil. A ledger that
// cannot be opened is logged and skipped.
func (a *app) openLedger(ctx context.Context) ledger.Ledger {
	if a.cfg.Ledger.Kind == "" {
		return nil
	}
	l, err := ledger.Open(ctx, ledger.Config{Kind: a.cfg.Ledger.Kind, DSN: a.cfg.Ledger.DSN})
	if err != nil {
		a.log.Warn("ledger unavailable; continuing without audit trail",
			zap.String("kind", a.cfg.Ledger.Kind), zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, l.Close)
	return l
}

func (a *app) tool(ctx context.Context, withLedger bool) *migrate.Tool {
	opts := migrate.Options{
		Loader: source.NewLoader(nil, a.cfg.HTTPTimeout),
		Logger: a.log,
	}
	if withLedger {
		opts.Ledger = a.openLedger(ctx)
	}
	return migrate.New(a.cfg, opts)
}

// paths applies the optional positional [legacy] [canonical] overrides.
func (a *app) paths(args []string) (string, string) {
	legacy, canonical := a.cfg.Legacy.Path, a.cfg.Canonical.Path
	if len(args) > 0 {
		legacy = args[0]
	}
	if len(args) > 1 {
		canonical = args[1]
	}
	return legacy, canonical
}

// close runs cleanups in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// render writes rep unless nothing was loaded at all.
func (a *app) render(rep report.Report) error {
	if rep.Legacy.Path == "" && rep.Canonical.Path == "" {
		return nil
	}
	return report.Render(a.stdout, rep, a.format)
}
