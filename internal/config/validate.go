package config

import (
	"fmt"
	"strings"

	"recmerge/internal/merge"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the config key it refers to.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks cfg for problems that would make a run meaningless or
// unsafe. It never touches the filesystem.
func Validate(cfg Config) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	issues = append(issues, validateSource("legacy", cfg.Legacy, true)...)
	issues = append(issues, validateSource("canonical", cfg.Canonical, false)...)

	if len(cfg.KeyFields) == 0 {
		add(SeverityError, "key_fields", "at least one identity field is required")
	}
	if cfg.KeySeparator == "" {
		add(SeverityError, "key_separator", "must not be empty")
	} else if strings.Contains(cfg.KeySeparator, "\x1f") {
		add(SeverityError, "key_separator", "must not contain the unit separator character")
	}
	if strings.TrimSpace(cfg.TitleField) == "" {
		add(SeverityWarning, "title_field", "empty; reports will show blank titles")
	}

	issues = append(issues, validateRegions(cfg)...)

	if strings.TrimSpace(cfg.BackupSuffix) == "" {
		add(SeverityError, "backup_suffix", "must not be empty; the backup would replace the canonical file")
	}
	if cfg.HTTPTimeout < 0 {
		add(SeverityError, "http_timeout", "must not be negative")
	}

	if cfg.Ledger.Kind != "" && strings.TrimSpace(cfg.Ledger.DSN) == "" {
		add(SeverityError, "ledger.dsn", "required when ledger.kind=%q", cfg.Ledger.Kind)
	}
	switch cfg.Metrics.Backend {
	case "", "nop", "datadog":
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want nop or datadog)", cfg.Metrics.Backend)
	}
	return issues
}

func validateSource(name string, s Source, allowHTML bool) []Issue {
	var issues []Issue
	add := func(sev Severity, key, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: name + "." + key, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Path) == "" {
		add(SeverityError, "path", "must not be empty")
	}

	switch s.Format {
	case FormatJS, "":
		if s.Marker == "" {
			add(SeverityError, "marker", "must not be empty")
		}
	case FormatHTML:
		if !allowHTML {
			add(SeverityError, "format", "html is only supported for the legacy source")
			break
		}
		if err := s.Layout.Validate(); err != nil {
			add(SeverityError, "mappings", "%v", err)
		}
	default:
		add(SeverityError, "format", "unknown format %q (want js or html)", s.Format)
	}
	return issues
}

func validateRegions(cfg Config) []Issue {
	var issues []Issue
	if len(cfg.Regions) == 0 {
		return append(issues, Issue{Severity: SeverityWarning, Path: "regions", Message: "no regions; merge will insert nothing"})
	}
	if strings.TrimSpace(cfg.ClassifyField) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "classify_field", Message: "required when regions are configured"})
	}

	names := make(map[string]bool)
	owner := make(map[string]string)
	for i, r := range cfg.Regions {
		path := fmt.Sprintf("regions[%d]", i)
		switch {
		case r.Name == "":
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: "must not be empty"})
		case r.Name == merge.OtherRegion:
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: fmt.Sprintf("%q is reserved for unclassified records", merge.OtherRegion)})
		case names[r.Name]:
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: fmt.Sprintf("duplicate region %q", r.Name)})
		}
		names[r.Name] = true

		if strings.TrimSpace(r.Marker) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".marker", Message: "must not be empty"})
		}
		for _, v := range r.Values {
			k := merge.Fold(v)
			if prev, ok := owner[k]; ok && prev != r.Name {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".values",
					Message:  fmt.Sprintf("%q already belongs to region %q; first region wins", v, prev),
				})
				continue
			}
			owner[k] = r.Name
		}
	}
	return issues
}
