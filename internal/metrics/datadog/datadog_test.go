package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"recmerge/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, fs *fakeSubmitter, job string) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   job,
		submitter: fs,
		now:       func() time.Time { return time.Unix(1000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"recmerge_records_total":                 "recmerge.records.total",
		"recmerge_step_duration_seconds":         "recmerge.step_duration_seconds",
		"recmerge_http_request_duration_seconds": "recmerge.http_request_duration_seconds",
		"other_metric":                           "other_metric",
	}
	for in, want := range tests {
		if got := metricName(in); got != want {
			t.Errorf("metricName(%q)=%q, want %q", in, got, want)
		}
	}
}

// TestLabelEncoding verifies labels become sorted tags and empty values
// are reported as "unknown".
func TestLabelEncoding(t *testing.T) {
	t.Parallel()

	got := decodeLabels(encodeLabels(metrics.Labels{"step": "merge", "status": "", "kind": "x"}))
	want := []string{"kind:x", "status:unknown", "step:merge"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("labels=%v, want %v", got, want)
	}
	if got := decodeLabels(encodeLabels(nil)); got != nil {
		t.Fatalf("nil labels decoded to %v, want nil", got)
	}
}

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	t.Parallel()

	base := []string{"env:test", "job:recmerge"}
	got := withTags(base, "step:diff", "status:ok")
	want := []string{"env:test", "job:recmerge", "step:diff", "status:ok"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

// TestPercentileNearestRank verifies percentile behavior.
func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

// TestAddPercentiles verifies addPercentiles produces six gauges and does
// not mutate its input.
func TestAddPercentiles(t *testing.T) {
	t.Parallel()

	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var out []datadogV2.MetricSeries
	addPercentiles(&out, []string{"env:test"}, "recmerge.step_duration_seconds", in, 999)

	if len(out) != 6 {
		t.Fatalf("series.len=%d, want 6", len(out))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	last := out[len(out)-1]
	if last.Metric != "recmerge.step_duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("samples gauge=%s %v, want count 5", last.Metric, *last.Points[0].Value)
	}
	if out[4].Type == nil || *out[4].Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("max gauge Type=%v, want GAUGE", out[4].Type)
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"service:recmerge"},
		submitter: fs,
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:recmerge") {
		t.Fatalf("baseTags missing job:recmerge: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:recmerge") {
		t.Fatalf("baseTags missing service:recmerge: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics,
// aggregates counters by name and labels, and resets buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, "job1")
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.MetricRecords, 2, metrics.Labels{"kind": "missing"})
	b.IncCounter(metrics.MetricRecords, 3, metrics.Labels{"kind": "missing"})
	b.IncCounter(metrics.MetricRecords, 0, metrics.Labels{"kind": "extra"})
	b.ObserveHistogram(metrics.MetricStepDuration, 0.5, metrics.Labels{"step": "merge", "status": "ok"})
	b.ObserveHistogram(metrics.MetricStepDuration, -1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submits=%d, want 1", fs.count())
	}
	p, _ := fs.last()

	// One count series plus six percentile gauges.
	if len(p.Series) != 7 {
		t.Fatalf("series.len=%d, want 7", len(p.Series))
	}
	c := p.Series[0]
	if c.Metric != "recmerge.records.total" || *c.Points[0].Value != 5 {
		t.Fatalf("counter=%s %v, want recmerge.records.total 5", c.Metric, *c.Points[0].Value)
	}
	if !contains(c.Tags, "kind:missing") || !contains(c.Tags, "job:job1") {
		t.Fatalf("counter tags=%v", c.Tags)
	}
	if *c.Points[0].Timestamp != 1000 {
		t.Fatalf("timestamp=%d, want 1000", *c.Points[0].Timestamp)
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("empty flush submitted; submits=%d", fs.count())
	}
}

// TestFlush_ErrorStillResets verifies a failed submit wraps the error and
// drops the buffered data rather than resubmitting it.
func TestFlush_ErrorStillResets(t *testing.T) {
	boom := errors.New("boom")
	fs := &fakeSubmitter{err: boom}
	b := newTestBackend(t, fs, "")

	b.IncCounter(metrics.MetricSteps, 1, metrics.Labels{"step": "diff", "status": "ok"})
	err := b.Flush()
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "datadog submit:") {
		t.Fatalf("Flush() err=%v, want wrapped boom", err)
	}

	fs.mu.Lock()
	fs.err = nil
	fs.mu.Unlock()
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submits=%d, want 1 (buffer reset after failure)", fs.count())
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	if got := ParseTagsCSV(""); got != nil {
		t.Fatalf("ParseTagsCSV(\"\")=%v, want nil", got)
	}
	got := ParseTagsCSV(" env:prod, ,team:data ")
	want := []string{"env:prod", "team:data"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTagsCSV()=%v, want %v", got, want)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
