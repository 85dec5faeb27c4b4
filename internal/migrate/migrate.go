// Package migrate runs the compare and merge workflows: load both sources,
// extract their records, diff them by identity key and, for merge, back up
// and rewrite the canonical document.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recmerge/internal/config"
	"recmerge/internal/diff"
	"recmerge/internal/extract"
	"recmerge/internal/extracthtml"
	"recmerge/internal/ledger"
	"recmerge/internal/metrics"
	"recmerge/internal/report"
	"recmerge/internal/source"
	"recmerge/pkg/records"
)

// Modes.
const (
	ModeCompare = "compare"
	ModeMerge   = "merge"
)

// Sides.
const (
	SideLegacy    = "legacy"
	SideCanonical = "canonical"
)

// Options carries the collaborators of a Tool. Zero values are usable.
type Options struct {
	Loader *source.Loader
	Logger *zap.Logger

	// Ledger receives one Run per Compare/Merge. Nil disables it.
	Ledger ledger.Ledger

	now func() time.Time
}

// Tool executes workflows for one configuration.
type Tool struct {
	cfg    config.Config
	loader *source.Loader
	log    *zap.Logger
	ledger ledger.Ledger
	now    func() time.Time
}

// New returns a Tool for cfg.
func New(cfg config.Config, opts Options) *Tool {
	t := &Tool{
		cfg:    cfg,
		loader: opts.Loader,
		log:    opts.Logger,
		ledger: opts.Ledger,
		now:    opts.now,
	}
	if t.loader == nil {
		t.loader = source.NewLoader(nil, cfg.HTTPTimeout)
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// side is one loaded and extracted document.
type side struct {
	name string
	path string
	text string
	recs records.RecordSet

	// span is set for js documents only.
	span    extract.Span
	skipped int
	err     error
}

func (s *side) summary() report.Side {
	out := report.Side{Path: s.path, Records: len(s.recs), Skipped: s.skipped}
	if s.err != nil {
		out.Error = s.err.Error()
	}
	return out
}

// loadSides reads both documents concurrently and extracts each. A read
// failure aborts the whole call; an extraction failure is recorded on its
// side only.
func (t *Tool) loadSides(ctx context.Context, legacyPath, canonicalPath string) (*side, *side, error) {
	legacy := &side{name: SideLegacy, path: legacyPath}
	canonical := &side{name: SideCanonical, path: canonicalPath}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.loadSide(gctx, legacy, t.cfg.Legacy) })
	g.Go(func() error { return t.loadSide(gctx, canonical, t.cfg.Canonical) })
	if err := g.Wait(); err != nil {
		metrics.RecordStep("load", "error", time.Since(start))
		return nil, nil, err
	}
	metrics.RecordStep("load", "ok", time.Since(start))
	return legacy, canonical, nil
}

func (t *Tool) loadSide(ctx context.Context, s *side, src config.Source) error {
	text, err := t.loader.Load(ctx, s.path)
	if err != nil {
		return err
	}
	s.text = text
	t.extractSide(s, src)
	return nil
}

func (t *Tool) extractSide(s *side, src config.Source) {
	if src.Format == config.FormatHTML {
		recs, err := extracthtml.ExtractRecords(s.text, src.Layout)
		if err != nil {
			s.err = fmt.Errorf("extract html records: %w", err)
			return
		}
		s.recs = recs
		metrics.AddRecords("extracted_"+s.name, len(recs))
		return
	}

	res, err := extract.Extract(s.text, src.Marker, extract.Options{Source: s.path, Logger: t.log})
	if err != nil {
		s.err = err
		return
	}
	s.recs = res.Records
	s.span = res.Span
	s.skipped = res.Skipped()
	metrics.AddRecords("extracted_"+s.name, len(res.Records))
	metrics.AddRecords("skipped", res.Skipped())
}

// sideErrors joins the extraction errors of both sides, or returns nil.
func sideErrors(sides ...*side) error {
	var errs []error
	for _, s := range sides {
		if s.err != nil {
			errs = append(errs, &SideError{Side: s.name, Err: s.err})
		}
	}
	return errors.Join(errs...)
}

func (t *Tool) diff(legacy, canonical *side) diff.Result {
	start := time.Now()
	res := diff.Diff(legacy.recs, canonical.recs, t.cfg.KeyBuilder())
	metrics.RecordStep("diff", "ok", time.Since(start))
	metrics.AddRecords("missing", len(res.Missing))
	metrics.AddRecords("extra", len(res.Extra))
	return res
}

func (t *Tool) describe(s records.RecordSet) []string {
	return report.DescribeAll(s, t.cfg.TitleField, t.cfg.DetailFields)
}

// Compare reports the differences between the two sources without writing
// anything.
//
// A read failure returns an error and an empty report. An extraction
// failure on either side returns the partial report (the other side's
// count, no diff) together with a non-nil error.
func (t *Tool) Compare(ctx context.Context, legacyPath, canonicalPath string) (report.Report, error) {
	run := t.startRun(ModeCompare, legacyPath, canonicalPath)
	rep := report.Report{RunID: run.ID, Mode: ModeCompare}

	legacy, canonical, err := t.loadSides(ctx, legacyPath, canonicalPath)
	if err != nil {
		return rep, t.failRun(ctx, run, err)
	}
	rep.Legacy, rep.Canonical = legacy.summary(), canonical.summary()

	if err := sideErrors(legacy, canonical); err != nil {
		run.count(legacy, canonical)
		return rep, t.failRun(ctx, run, err)
	}

	d := t.diff(legacy, canonical)
	rep.Compared = true
	rep.Missing = t.describe(d.Missing)
	rep.Extra = t.describe(d.Extra)

	t.log.Info("compare finished",
		zap.String("run_id", run.ID),
		zap.Int("legacy", len(legacy.recs)),
		zap.Int("canonical", len(canonical.recs)),
		zap.Int("missing", len(d.Missing)),
		zap.Int("extra", len(d.Extra)),
	)

	run.fill(legacy, canonical, d)
	t.finishRun(ctx, run)
	return rep, nil
}
