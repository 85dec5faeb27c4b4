package migrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recmerge/internal/merge"
	"recmerge/internal/metrics"
	"recmerge/internal/report"
	"recmerge/internal/source"
)

// ConfirmFunc is asked before anything is written. The report carries the
// diff. Returning false cancels the merge without error.
type ConfirmFunc func(ctx context.Context, rep report.Report) (bool, error)

func (t *Tool) plan() merge.Plan {
	return merge.Plan{
		ArrayMarker:   t.cfg.Canonical.Marker,
		Regions:       t.cfg.Regions,
		ClassifyField: t.cfg.ClassifyField,
		FieldOrder:    t.cfg.FieldOrder,
	}
}

// Merge inserts the records missing from the canonical document under
// their region sections and rewrites it in place.
//
// Order of effects: both sources are read and fully extracted, the diff is
// reported to confirm, the original canonical text is written to the
// backup, the merge runs in memory and the result replaces the canonical
// file atomically. Any extraction failure aborts before confirm. A region
// whose marker is missing is reported and skipped. A failed final write
// returns *WriteError and leaves the backup in place.
//
// With nothing missing, nothing is confirmed or written.
func (t *Tool) Merge(ctx context.Context, legacyPath, canonicalPath string, confirm ConfirmFunc) (report.Report, error) {
	run := t.startRun(ModeMerge, legacyPath, canonicalPath)
	rep := report.Report{RunID: run.ID, Mode: ModeMerge}

	if source.IsURL(canonicalPath) {
		return rep, t.failRun(ctx, run, ErrRemoteCanonical)
	}

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
	run.fill(legacy, canonical, d)

	if len(d.Missing) == 0 {
		t.log.Info("nothing to merge", zap.String("run_id", run.ID), zap.String("canonical", canonicalPath))
		t.finishRun(ctx, run)
		return rep, nil
	}

	if confirm != nil {
		ok, err := confirm(ctx, rep)
		if err != nil {
			return rep, t.failRun(ctx, run, fmt.Errorf("confirm merge: %w", err))
		}
		if !ok {
			rep.Declined = true
			t.log.Info("merge declined", zap.String("run_id", run.ID))
			t.finishRun(ctx, run)
			return rep, nil
		}
	}

	start := time.Now()
	backup, err := source.WriteBackup(canonicalPath, []byte(canonical.text), t.cfg.BackupSuffix)
	if err != nil {
		metrics.RecordStep("backup", "error", time.Since(start))
		rep.WriteFailed = true
		return rep, t.failRun(ctx, run, &WriteError{Path: canonicalPath, Err: err})
	}
	metrics.RecordStep("backup", "ok", time.Since(start))
	rep.Backup = backup
	run.Backup = backup
	t.log.Info("backup written", zap.String("run_id", run.ID), zap.String("backup", backup))

	start = time.Now()
	res, err := merge.Merge(canonical.text, d.Missing, t.plan())
	if err != nil {
		metrics.RecordStep("merge", "error", time.Since(start))
		return rep, t.failRun(ctx, run, fmt.Errorf("merge into %s: %w", canonicalPath, err))
	}
	metrics.RecordStep("merge", "ok", time.Since(start))

	for _, o := range res.Regions {
		line := report.Region{Name: o.Region, Marker: o.Marker, Inserted: o.Inserted, Titles: t.describe(o.Records)}
		if o.Err != nil {
			line.Error = o.Err.Error()
			metrics.IncCounter(metrics.MetricRegionFailures, 1, metrics.Labels{"region": o.Region})
			t.log.Warn("region not merged",
				zap.String("run_id", run.ID),
				zap.String("region", o.Region),
				zap.String("marker", o.Marker),
				zap.Int("records", len(o.Records)),
			)
		} else {
			metrics.IncCounter(metrics.MetricRegionInserts, float64(o.Inserted), metrics.Labels{"region": o.Region})
		}
		rep.Regions = append(rep.Regions, line)
	}
	rep.Unclassified = t.describe(res.Unclassified)
	metrics.AddRecords("inserted", res.Inserted())
	metrics.AddRecords("unclassified", len(res.Unclassified))
	run.addMerge(res)

	if res.Text != canonical.text {
		start = time.Now()
		if err := source.WriteFileAtomic(canonicalPath, []byte(res.Text), source.FilePerm(canonicalPath)); err != nil {
			metrics.RecordStep("write", "error", time.Since(start))
			rep.WriteFailed = true
			return rep, t.failRun(ctx, run, &WriteError{Path: canonicalPath, Backup: backup, Err: err})
		}
		metrics.RecordStep("write", "ok", time.Since(start))
		rep.Written = true
	}

	t.log.Info("merge finished",
		zap.String("run_id", run.ID),
		zap.Int("inserted", res.Inserted()),
		zap.Int("failed_regions", len(res.Failed())),
		zap.Int("unclassified", len(res.Unclassified)),
	)
	t.finishRun(ctx, run)
	return rep, nil
}
