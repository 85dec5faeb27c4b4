package migrate

import (
	"context"

	"go.uber.org/zap"

	"recmerge/internal/diff"
	"recmerge/internal/ledger"
	"recmerge/internal/merge"
	"recmerge/pkg/records"
)

// runLog accumulates the ledger row of one invocation.
type runLog struct {
	ledger.Run
	kb    records.KeyBuilder
	title string
}

func (t *Tool) startRun(mode, legacyPath, canonicalPath string) *runLog {
	return &runLog{
		Run: ledger.Run{
			ID:        ledger.NewRunID(),
			Mode:      mode,
			Legacy:    legacyPath,
			Canonical: canonicalPath,
			StartedAt: t.now(),
		},
		kb:    t.cfg.KeyBuilder(),
		title: t.cfg.TitleField,
	}
}

func (r *runLog) count(legacy, canonical *side) {
	r.LegacyCount = len(legacy.recs)
	r.CanonicalCount = len(canonical.recs)
}

func (r *runLog) fill(legacy, canonical *side, d diff.Result) {
	r.count(legacy, canonical)
	r.Missing = len(d.Missing)
	r.Extra = len(d.Extra)
	r.add(d.Missing, ledger.ActionMissing, "")
	r.add(d.Extra, ledger.ActionExtra, "")
}

func (r *runLog) addMerge(res merge.Result) {
	for _, o := range res.Regions {
		action := ledger.ActionInserted
		if o.Err != nil {
			action = ledger.ActionUnmerged
		}
		r.add(o.Records, action, o.Region)
	}
	r.add(res.Unclassified, ledger.ActionUnclassified, merge.OtherRegion)
	r.Inserted = res.Inserted()
}

func (r *runLog) add(s records.RecordSet, action ledger.Action, region string) {
	for _, rec := range s {
		r.Entries = append(r.Entries, ledger.Entry{
			Key:    r.kb.Key(rec),
			Title:  rec.Value(r.title),
			Action: action,
			Region: region,
		})
	}
}

// finishRun stores the run. Ledger failures are logged only; the audit
// trail never decides the outcome of a run.
func (t *Tool) finishRun(ctx context.Context, r *runLog) {
	r.FinishedAt = t.now()
	if t.ledger == nil {
		return
	}
	if err := t.ledger.RecordRun(ctx, r.Run); err != nil {
		t.log.Warn("ledger write failed", zap.String("run_id", r.ID), zap.Error(err))
	}
}

// failRun stores r with err as its failure and returns err.
func (t *Tool) failRun(ctx context.Context, r *runLog, err error) error {
	r.Failure = err.Error()
	t.finishRun(ctx, r)
	return err
}
