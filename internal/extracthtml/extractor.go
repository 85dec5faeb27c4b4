// Package extracthtml turns HTML pages that list records as DOM elements
// (for example company cards) into a records.RecordSet.
package extracthtml

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"recmerge/pkg/records"

	"github.com/PuerkitoBio/goquery"
)

// ExtractRecords parses html and extracts one Record per element matched by
// layout.RecordSelector, in DOM order. Mappings are evaluated relative to
// each container.
//
// Missing selectors are not errors; they produce no field. Containers that
// yield no field at all are dropped. An invalid Match pattern fails the
// whole call, since it would fail for every container.
func ExtractRecords(html string, layout Layout) (records.RecordSet, error) {
	rules, err := compileMappings(layout.Mappings)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := records.RecordSet{}
	if strings.TrimSpace(layout.RecordSelector) == "" {
		if r := extractRecord(doc.Selection, rules); r.Len() > 0 {
			out = append(out, r)
		}
		return out, nil
	}

	doc.Find(layout.RecordSelector).Each(func(_ int, sel *goquery.Selection) {
		if r := extractRecord(sel, rules); r.Len() > 0 {
			out = append(out, r)
		}
	})
	return out, nil
}

type rule struct {
	Mapping
	re *regexp.Regexp
}

func compileMappings(mappings []Mapping) ([]rule, error) {
	rules := make([]rule, 0, len(mappings))
	for _, m := range mappings {
		re, err := compileOptionalRegex(m.Match, m.Field)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule{Mapping: m, re: re})
	}
	return rules, nil
}

// extractRecord applies rules relative to root. Fields appear in mapping
// order.
func extractRecord(root *goquery.Selection, rules []rule) records.Record {
	var rec records.Record

	for _, r := range rules {
		if r.All {
			var vals []string
			root.Find(r.Selector).Each(func(_ int, sel *goquery.Selection) {
				if v := applyRegexFilter(extractValue(sel, r.Mapping), r.re); v != "" {
					vals = append(vals, v)
				}
			})
			if len(vals) == 0 {
				continue
			}
			b, err := json.Marshal(vals)
			if err != nil {
				continue
			}
			rec.SetRaw(r.Field, string(b))
			continue
		}

		sel := root.Find(r.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		if v := applyRegexFilter(extractValue(sel, r.Mapping), r.re); v != "" {
			rec.Set(r.Field, v)
		}
	}
	return rec
}

// extractValue returns "" for "no value", including unknown modes.
func extractValue(sel *goquery.Selection, m Mapping) string {
	switch m.Extract {
	case "text", "":
		return strings.Join(strings.Fields(sel.Text()), " ")
	case "attr":
		if m.Attr == "" {
			return ""
		}
		if val, ok := sel.Attr(m.Attr); ok {
			return strings.TrimSpace(val)
		}
		return ""
	case "html":
		h, err := sel.Html()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(h)
	default:
		return ""
	}
}

// compileOptionalRegex returns (nil, nil) for an empty pattern.
func compileOptionalRegex(pattern, field string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex for field=%q: %w", field, err)
	}
	return re, nil
}

// applyRegexFilter keeps group 1 when the pattern has groups, the full
// match otherwise, and "" when it does not match.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}

	sm := re.FindStringSubmatch(value)
	if len(sm) == 0 {
		return ""
	}
	if len(sm) > 1 {
		return sm[1]
	}
	return sm[0]
}

// Validate reports mapping problems before any page is read.
func (l Layout) Validate() error {
	if len(l.Mappings) == 0 {
		return fmt.Errorf("html layout has no mappings")
	}
	for i, m := range l.Mappings {
		if strings.TrimSpace(m.Selector) == "" {
			return fmt.Errorf("mapping %d: empty selector", i)
		}
		if strings.TrimSpace(m.Field) == "" {
			return fmt.Errorf("mapping %d: empty field", i)
		}
		switch m.Extract {
		case "", "text", "html":
		case "attr":
			if m.Attr == "" {
				return fmt.Errorf("mapping %d (%s): extract=attr needs attr", i, m.Field)
			}
		default:
			return fmt.Errorf("mapping %d (%s): unknown extract %q", i, m.Field, m.Extract)
		}
	}
	_, err := compileMappings(l.Mappings)
	return err
}
