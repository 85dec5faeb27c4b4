// Package source reads the documents the tool compares and writes the
// canonical document back safely.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"recmerge/internal/metrics"
)

// ReadError reports a document that could not be read. It is fatal for the
// run: nothing is extracted when either source is unreadable.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read source %s: %v", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Loader reads a document from the local filesystem or, for http(s)
// locations, fetches it with a consistent timeout policy.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
// A non-positive timeout defaults to 20 seconds.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Loader{
		client:  client,
		timeout: timeout,
	}
}

// IsURL reports whether loc is fetched over HTTP.
func IsURL(loc string) bool {
	l := strings.ToLower(strings.TrimSpace(loc))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Load returns the text of the document at loc. Every failure is a
// *ReadError.
//
// On non-2xx HTTP responses the error includes the status code and up to
// 4KB of the response body.
func (l *Loader) Load(ctx context.Context, loc string) (string, error) {
	if strings.TrimSpace(loc) == "" {
		return "", &ReadError{Location: loc, Err: fmt.Errorf("empty location")}
	}
	if !IsURL(loc) {
		b, err := os.ReadFile(loc)
		if err != nil {
			return "", &ReadError{Location: loc, Err: err}
		}
		return string(b), nil
	}

	s, err := l.fetch(ctx, loc)
	if err != nil {
		return "", &ReadError{Location: loc, Err: err}
	}
	return s, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "recmerge/1.0")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.IncCounter(metrics.MetricHTTPRequests, 1, metrics.Labels{"status": "error"})
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	metrics.IncCounter(metrics.MetricHTTPRequests, 1, metrics.Labels{"status": status})
	metrics.ObserveHistogram(metrics.MetricHTTPDuration, time.Since(start).Seconds(), metrics.Labels{"status": status})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}
