package merge

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"recmerge/pkg/records"
)

// OtherRegion is the bucket for records whose classification value has no
// table entry. Those records are reported, never inserted.
const OtherRegion = "other"

// Region is one section of the canonical document.
type Region struct {
	// Name is the region label, e.g. "europe".
	Name string `mapstructure:"name" json:"name" yaml:"name"`

	// Marker is the line comment that opens the section, matched exactly,
	// e.g. "// == EUROPE ==".
	Marker string `mapstructure:"marker" json:"marker" yaml:"marker"`

	// Values lists the classification values that belong to the region.
	Values []string `mapstructure:"values" json:"values" yaml:"values"`
}

// Classifier maps a record's classification field onto a region name.
//
// Lookups are folded: diacritics are stripped, case is folded and spaces,
// dashes, underscores, dots and apostrophes are dropped, so "United Kingdom",
// "united-kingdom" and "unitedkingdom" resolve to the same entry.
type Classifier struct {
	field string
	table map[string]string
}

// NewClassifier builds a Classifier over field. When a value is listed by
// more than one region, the first region wins.
func NewClassifier(field string, regions []Region) *Classifier {
	c := &Classifier{field: field, table: make(map[string]string)}
	for _, r := range regions {
		for _, v := range r.Values {
			k := Fold(v)
			if k == "" {
				continue
			}
			if _, dup := c.table[k]; !dup {
				c.table[k] = r.Name
			}
		}
	}
	return c
}

// Region returns the region of r, or OtherRegion and false.
func (c *Classifier) Region(r records.Record) (string, bool) {
	v, ok := r.Get(c.field)
	if !ok {
		return OtherRegion, false
	}
	name, ok := c.table[Fold(v)]
	if !ok {
		return OtherRegion, false
	}
	return name, true
}

// Fold canonicalizes a classification value for table lookups.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '-', '_', '.', '\'':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
