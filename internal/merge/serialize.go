package merge

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"recmerge/pkg/records"
)

// Style describes how entries of the canonical document are written.
type Style struct {
	// QuoteKeys writes "name": instead of name:.
	QuoteKeys bool

	// Padded writes "{ a: 1 }" instead of "{a: 1}".
	Padded bool
}

var (
	reQuotedKey = regexp.MustCompile(`\{(\s*)"[A-Za-z_$][\w$]*"\s*:`)
	reBareKey   = regexp.MustCompile(`\{(\s*)[A-Za-z_$][\w$]*\s*:`)
	reIdent     = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// DetectStyle infers the entry style from the first object literal found in
// content. With no entries it falls back to padded bare keys.
func DetectStyle(content string) Style {
	q := reQuotedKey.FindStringSubmatchIndex(content)
	u := reBareKey.FindStringSubmatchIndex(content)

	switch {
	case q == nil && u == nil:
		return Style{Padded: true}
	case u == nil || (q != nil && q[0] < u[0]):
		return Style{QuoteKeys: true, Padded: q[3] > q[2]}
	default:
		return Style{Padded: u[3] > u[2]}
	}
}

// Serialize writes r as a single-line object literal.
//
// Fields named in order come first, in that order; the rest follow in
// record order. String values are emitted as double-quoted JSON strings, so
// embedded double quotes become \" and single quotes are never introduced.
// Raw values are written verbatim.
func Serialize(r records.Record, style Style, order []string) string {
	fields := orderedFields(r, order)

	var b strings.Builder
	b.WriteByte('{')
	if style.Padded && len(fields) > 0 {
		b.WriteByte(' ')
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		if style.QuoteKeys || !reIdent.MatchString(f.Name) {
			b.WriteString(quote(f.Name))
		} else {
			b.WriteString(f.Name)
		}
		b.WriteString(": ")
		if f.Raw {
			b.WriteString(f.Value)
		} else {
			b.WriteString(quote(f.Value))
		}
	}
	if style.Padded && len(fields) > 0 {
		b.WriteByte(' ')
	}
	b.WriteByte('}')
	return b.String()
}

func orderedFields(r records.Record, order []string) []records.Field {
	out := make([]records.Field, 0, r.Len())
	used := make(map[string]bool, len(order))
	for _, name := range order {
		if used[name] {
			continue
		}
		for _, f := range r.Fields {
			if f.Name == name {
				out = append(out, f)
				used[name] = true
				break
			}
		}
	}
	for _, f := range r.Fields {
		if !used[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
