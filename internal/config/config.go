// Package config loads recmerge settings from flags, RECMERGE_* environment
// variables, an optional YAML/JSON/TOML file and built-in defaults, in that
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"recmerge/internal/extracthtml"
	"recmerge/internal/merge"
	"recmerge/internal/source"
	"recmerge/pkg/records"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RECMERGE_LEGACY_PATH.
const EnvPrefix = "RECMERGE"

// Source formats.
const (
	FormatJS   = "js"
	FormatHTML = "html"
)

// Source describes one input document.
type Source struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Marker string `mapstructure:"marker" yaml:"marker"`

	// Format is "js" (array literal after Marker) or "html" (DOM records
	// described by the embedded layout). Only the legacy side may be html.
	Format string `mapstructure:"format" yaml:"format"`

	extracthtml.Layout `mapstructure:",squash" yaml:",inline"`
}

// Ledger selects the audit ledger backend. Empty Kind disables it.
type Ledger struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// Metrics selects the metrics backend ("nop" or "datadog").
type Metrics struct {
	Backend string   `mapstructure:"backend" yaml:"backend"`
	Tags    []string `mapstructure:"tags" yaml:"tags"`
}

// Config is the fully resolved configuration of one invocation.
type Config struct {
	Legacy    Source `mapstructure:"legacy" yaml:"legacy"`
	Canonical Source `mapstructure:"canonical" yaml:"canonical"`

	KeyFields    []string `mapstructure:"key_fields" yaml:"key_fields"`
	KeySeparator string   `mapstructure:"key_separator" yaml:"key_separator"`
	TitleField   string   `mapstructure:"title_field" yaml:"title_field"`
	DetailFields []string `mapstructure:"detail_fields" yaml:"detail_fields"`
	FieldOrder   []string `mapstructure:"field_order" yaml:"field_order"`

	ClassifyField string         `mapstructure:"classify_field" yaml:"classify_field"`
	Regions       []merge.Region `mapstructure:"regions" yaml:"regions"`

	BackupSuffix string        `mapstructure:"backup_suffix" yaml:"backup_suffix"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`

	Ledger  Ledger  `mapstructure:"ledger" yaml:"ledger"`
	Metrics Metrics `mapstructure:"metrics" yaml:"metrics"`
}

// KeyBuilder returns the identity key builder for this configuration.
func (c Config) KeyBuilder() records.KeyBuilder {
	return records.KeyBuilder{Fields: c.KeyFields, Separator: c.KeySeparator}
}

// DefaultMarker opens the records array in both event documents.
const DefaultMarker = "const events = ["

// DefaultFieldOrder is the field order of canonical event entries.
var DefaultFieldOrder = []string{
	"name", "country", "countryFlag", "city", "date", "endDate",
	"category", "description", "url", "investment",
}

// New returns a viper instance with defaults and environment binding set.
// Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults installs the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("legacy.path", "Event Hunter V0.1.html")
	v.SetDefault("legacy.marker", DefaultMarker)
	v.SetDefault("legacy.format", FormatJS)
	v.SetDefault("canonical.path", "data.js")
	v.SetDefault("canonical.marker", DefaultMarker)
	v.SetDefault("canonical.format", FormatJS)

	v.SetDefault("key_fields", []string{"name", "country", "city", "date"})
	v.SetDefault("key_separator", records.DefaultSeparator)
	v.SetDefault("title_field", "name")
	v.SetDefault("detail_fields", []string{"country", "date"})
	v.SetDefault("field_order", DefaultFieldOrder)

	v.SetDefault("classify_field", "country")
	v.SetDefault("regions", regionDefaults())

	v.SetDefault("backup_suffix", source.DefaultBackupSuffix)
	v.SetDefault("http_timeout", 20*time.Second)
	v.SetDefault("metrics.backend", "nop")
}

// regionDefaults renders DefaultRegions as plain maps so viper can merge
// them with file and env layers like any other value.
func regionDefaults() []map[string]any {
	regions := DefaultRegions()
	out := make([]map[string]any, 0, len(regions))
	for _, r := range regions {
		out = append(out, map[string]any{
			"name":   r.Name,
			"marker": r.Marker,
			"values": r.Values,
		})
	}
	return out
}

// Load reads the optional config file at path into v and decodes the
// merged result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.KeyFields = trimAll(cfg.KeyFields)
	cfg.DetailFields = trimAll(cfg.DetailFields)
	cfg.FieldOrder = trimAll(cfg.FieldOrder)
	return cfg, nil
}

// trimAll trims entries and drops empty ones; env lists like
// "name, country" arrive with spaces.
func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
