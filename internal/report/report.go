// Package report renders the outcome of a compare or merge run for humans
// (text) and for tooling (JSON, YAML).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"recmerge/pkg/records"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Side summarizes one source document.
type Side struct {
	Path    string `json:"path" yaml:"path"`
	Records int    `json:"records" yaml:"records"`
	Skipped int    `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	// Error is set when the side could not be read or extracted; the diff
	// is then not computed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Region is the merge outcome of one region section.
type Region struct {
	Name     string   `json:"name" yaml:"name"`
	Marker   string   `json:"marker" yaml:"marker"`
	Inserted int      `json:"inserted" yaml:"inserted"`
	Titles   []string `json:"titles" yaml:"titles"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the complete, format-neutral run outcome.
type Report struct {
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Mode  string `json:"mode" yaml:"mode"`

	Legacy    Side `json:"legacy" yaml:"legacy"`
	Canonical Side `json:"canonical" yaml:"canonical"`

	// Compared is false when either side failed.
	Compared bool     `json:"compared" yaml:"compared"`
	Missing  []string `json:"missing" yaml:"missing"`
	Extra    []string `json:"extra" yaml:"extra"`

	Regions      []Region `json:"regions,omitempty" yaml:"regions,omitempty"`
	Unclassified []string `json:"unclassified,omitempty" yaml:"unclassified,omitempty"`

	// Declined is set when the user answered no at the merge prompt.
	Declined bool   `json:"declined,omitempty" yaml:"declined,omitempty"`
	Backup   string `json:"backup,omitempty" yaml:"backup,omitempty"`
	Written  bool   `json:"written" yaml:"written"`
	// WriteFailed is set when the backup or the canonical write failed.
	// A non-empty Backup then holds the original text.
	WriteFailed bool `json:"write_failed,omitempty" yaml:"write_failed,omitempty"`
}

// Inserted returns the total number of inserted records.
func (r Report) Inserted() int {
	n := 0
	for _, g := range r.Regions {
		n += g.Inserted
	}
	return n
}

// FailedRegions returns the regions whose marker was not found.
func (r Report) FailedRegions() []Region {
	var out []Region
	for _, g := range r.Regions {
		if g.Error != "" {
			out = append(out, g)
		}
	}
	return out
}

// Describe formats a record as "title (detail, detail)". Empty details are
// left out; a record without a title shows as "(untitled)".
func Describe(r records.Record, titleField string, detailFields []string) string {
	title := strings.TrimSpace(r.Value(titleField))
	if title == "" {
		title = "(untitled)"
	}
	var details []string
	for _, f := range detailFields {
		if v := strings.TrimSpace(r.Value(f)); v != "" {
			details = append(details, v)
		}
	}
	if len(details) == 0 {
		return title
	}
	return title + " (" + strings.Join(details, ", ") + ")"
}

// DescribeAll applies Describe to every record of s. The result is never nil.
func DescribeAll(s records.RecordSet, titleField string, detailFields []string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, Describe(r, titleField, detailFields))
	}
	return out
}

// Render writes r to w in format.
func Render(w io.Writer, r Report, format string) error {
	switch format {
	case FormatText, "":
		return RenderText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
