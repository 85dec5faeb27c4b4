package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"recmerge/internal/extracthtml"
	"recmerge/internal/merge"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	require.Equal(t, "Event Hunter V0.1.html", cfg.Legacy.Path)
	require.Equal(t, "data.js", cfg.Canonical.Path)
	require.Equal(t, DefaultMarker, cfg.Legacy.Marker)
	require.Equal(t, FormatJS, cfg.Legacy.Format)
	require.Equal(t, []string{"name", "country", "city", "date"}, cfg.KeyFields)
	require.Equal(t, "|", cfg.KeySeparator)
	require.Equal(t, DefaultFieldOrder, cfg.FieldOrder)
	require.Equal(t, ".backup", cfg.BackupSuffix)
	require.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	require.Equal(t, DefaultRegions(), cfg.Regions)
	require.Empty(t, Validate(cfg))
}

// TestLoad_FileOverridesDefaults verifies a YAML file replaces defaults,
// including the HTML layout squashed into the legacy source.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recmerge.yaml")
	yml := `
legacy:
  path: "Companies - V0.1.html"
  format: html
  record_selector: ".company-card"
  mappings:
    - selector: ".company-name"
      extract: text
      field: name
canonical:
  path: companies/data.js
  marker: "const companies = ["
key_fields: [name]
regions:
  - name: all
    marker: "// == COMPANIES =="
    values: [germany]
http_timeout: 5s
ledger:
  kind: sqlite
  dsn: ledger.db
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	require.Equal(t, FormatHTML, cfg.Legacy.Format)
	require.Equal(t, ".company-card", cfg.Legacy.RecordSelector)
	require.Equal(t, []extracthtml.Mapping{{Selector: ".company-name", Extract: "text", Field: "name"}}, cfg.Legacy.Mappings)
	require.Equal(t, "const companies = [", cfg.Canonical.Marker)
	require.Equal(t, []string{"name"}, cfg.KeyFields)
	require.Equal(t, []merge.Region{{Name: "all", Marker: "// == COMPANIES ==", Values: []string{"germany"}}}, cfg.Regions)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, Ledger{Kind: "sqlite", DSN: "ledger.db"}, cfg.Ledger)
	require.False(t, HasErrors(Validate(cfg)))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECMERGE_CANONICAL_PATH", "other.js")
	t.Setenv("RECMERGE_KEY_FIELDS", "name, date")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "other.js", cfg.Canonical.Path)
	require.Equal(t, []string{"name", "date"}, cfg.KeyFields)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
		wantSev  Severity
	}{
		{name: "empty_key_fields", mutate: func(c *Config) { c.KeyFields = nil }, wantPath: "key_fields", wantSev: SeverityError},
		{name: "empty_separator", mutate: func(c *Config) { c.KeySeparator = "" }, wantPath: "key_separator", wantSev: SeverityError},
		{name: "unit_separator_in_separator", mutate: func(c *Config) { c.KeySeparator = "|\x1f" }, wantPath: "key_separator", wantSev: SeverityError},
		{name: "empty_legacy_marker", mutate: func(c *Config) { c.Legacy.Marker = "" }, wantPath: "legacy.marker", wantSev: SeverityError},
		{name: "html_canonical", mutate: func(c *Config) { c.Canonical.Format = FormatHTML }, wantPath: "canonical.format", wantSev: SeverityError},
		{name: "html_without_mappings", mutate: func(c *Config) { c.Legacy.Format = FormatHTML }, wantPath: "legacy.mappings", wantSev: SeverityError},
		{name: "unknown_format", mutate: func(c *Config) { c.Legacy.Format = "xml" }, wantPath: "legacy.format", wantSev: SeverityError},
		{name: "empty_backup_suffix", mutate: func(c *Config) { c.BackupSuffix = "" }, wantPath: "backup_suffix", wantSev: SeverityError},
		{name: "ledger_without_dsn", mutate: func(c *Config) { c.Ledger.Kind = "sqlite" }, wantPath: "ledger.dsn", wantSev: SeverityError},
		{name: "unknown_metrics", mutate: func(c *Config) { c.Metrics.Backend = "statsd" }, wantPath: "metrics.backend", wantSev: SeverityError},
		{name: "no_regions", mutate: func(c *Config) { c.Regions = nil }, wantPath: "regions", wantSev: SeverityWarning},
		{name: "reserved_region", mutate: func(c *Config) { c.Regions[0].Name = merge.OtherRegion }, wantPath: "regions[0].name", wantSev: SeverityError},
		{name: "duplicate_region", mutate: func(c *Config) { c.Regions[1].Name = c.Regions[0].Name }, wantPath: "regions[1].name", wantSev: SeverityError},
		{name: "empty_marker", mutate: func(c *Config) { c.Regions[2].Marker = " " }, wantPath: "regions[2].marker", wantSev: SeverityError},
		{name: "value_in_two_regions", mutate: func(c *Config) { c.Regions[1].Values = append(c.Regions[1].Values, "Germany") }, wantPath: "regions[1].values", wantSev: SeverityWarning},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)

			issues := Validate(cfg)
			require.NotEmpty(t, issues)
			var found bool
			for _, iss := range issues {
				if iss.Path == tc.wantPath && iss.Severity == tc.wantSev {
					found = true
				}
			}
			require.True(t, found, "issues=%v", issues)
		})
	}
}
