// Package metrics is a small process-wide metrics facade.
//
// Code records counters and histograms through the package functions; a
// backend chosen at startup (Datadog, or the default no-op) receives them.
// This keeps the extraction and merge code free of vendor SDKs.
package metrics

import (
	"sync"
	"time"
)

// Metric names recorded by this tool.
const (
	// MetricRecords counts records by kind: extracted_legacy,
	// extracted_canonical, missing, extra, inserted, unclassified, skipped.
	MetricRecords = "recmerge_records_total"

	// MetricRegionInserts counts inserted records by region.
	MetricRegionInserts = "recmerge_region_inserts_total"

	// MetricRegionFailures counts regions whose marker was not found.
	MetricRegionFailures = "recmerge_region_failures_total"

	// MetricSteps counts pipeline steps by step and status.
	MetricSteps = "recmerge_step_total"

	// MetricStepDuration observes step durations in seconds.
	MetricStepDuration = "recmerge_step_duration_seconds"

	// MetricHTTPRequests counts source fetches by status.
	MetricHTTPRequests = "recmerge_http_requests_total"

	// MetricHTTPDuration observes source fetch durations in seconds.
	MetricHTTPDuration = "recmerge_http_request_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one step outcome and its duration.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(MetricSteps, 1, l)
	ObserveHistogram(MetricStepDuration, d.Seconds(), l)
}

// AddRecords adds n to the records counter for kind. Zero is ignored.
func AddRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(MetricRecords, float64(n), Labels{"kind": kind})
}
