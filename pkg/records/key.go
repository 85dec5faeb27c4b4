package records

import "strings"

const (
	// DefaultSeparator joins identity key segments.
	DefaultSeparator = "|"

	// placeholder starts the escape sequences that stand in for separator
	// and placeholder occurrences inside field values, so a value cannot
	// shift segment boundaries or mimic an escaped separator.
	placeholder = "\x1f"
)

// KeyBuilder derives identity keys from a fixed, ordered list of fields.
//
// Behavior / canonicalization rules:
//   - Fields are concatenated in the given order using Separator.
//   - A missing field contributes an empty segment. Such keys are degenerate
//     but still compared.
//   - Inside values, the ASCII Unit Separator becomes US "0" and the
//     separator becomes US "1", so distinct values give distinct keys.
//     A separator that itself contains US is not supported.
//   - Values are used as-is; no trimming or case folding.
type KeyBuilder struct {
	Fields []string

	// Separator defaults to "|" when empty.
	Separator string
}

// Key returns the identity key of r.
func (k KeyBuilder) Key(r Record) string {
	sep := k.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var b strings.Builder
	b.Grow(len(k.Fields) * 16)

	for i, name := range k.Fields {
		if i > 0 {
			b.WriteString(sep)
		}
		v, ok := r.Get(name)
		if !ok {
			continue
		}
		if strings.Contains(v, sep) || strings.Contains(v, placeholder) {
			v = strings.NewReplacer(placeholder, placeholder+"0", sep, placeholder+"1").Replace(v)
		}
		b.WriteString(v)
	}
	return b.String()
}

// Key is shorthand for KeyBuilder{Fields: fields}.Key(r).
func Key(r Record, fields []string) string {
	return KeyBuilder{Fields: fields}.Key(r)
}
