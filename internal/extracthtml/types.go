package extracthtml

// Mapping is one field rule evaluated relative to a record container.
type Mapping struct {
	Selector string `mapstructure:"selector" json:"selector" yaml:"selector"`

	// Extract is "text", "attr" or "html".
	Extract string `mapstructure:"extract" json:"extract" yaml:"extract"`

	// Attr is used when Extract == "attr".
	Attr string `mapstructure:"attr" json:"attr,omitempty" yaml:"attr,omitempty"`

	// Field is the record field the value is stored under.
	Field string `mapstructure:"field" json:"field" yaml:"field"`

	// Match is an optional regex filter; group 1 wins when present.
	Match string `mapstructure:"match" json:"match,omitempty" yaml:"match,omitempty"`

	// All collects every match into a raw JSON string array.
	All bool `mapstructure:"all" json:"all,omitempty" yaml:"all,omitempty"`
}

// Layout describes how an HTML page lays out its records.
type Layout struct {
	// RecordSelector matches one container per record. Empty means the whole
	// document is a single record.
	RecordSelector string    `mapstructure:"record_selector" json:"record_selector,omitempty" yaml:"record_selector,omitempty"`
	Mappings       []Mapping `mapstructure:"mappings" json:"mappings" yaml:"mappings"`
}
