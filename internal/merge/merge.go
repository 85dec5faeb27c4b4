// Package merge inserts records into the region sections of a canonical
// document without disturbing the rest of its text.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"recmerge/internal/extract"
	"recmerge/pkg/records"
)

// ErrRegionMarkerNotFound is wrapped by RegionError.
var ErrRegionMarkerNotFound = errors.New("region marker not found")

// RegionError reports a region whose section marker is absent from the
// document. It affects that region only.
type RegionError struct {
	Region string
	Marker string
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region %s: %v (%q)", e.Region, ErrRegionMarkerNotFound, e.Marker)
}

func (e *RegionError) Unwrap() error { return ErrRegionMarkerNotFound }

// Plan describes the canonical document layout.
type Plan struct {
	// ArrayMarker introduces the array literal, e.g. "const events = [".
	ArrayMarker string

	// Regions in insertion order.
	Regions []Region

	// ClassifyField selects the region of a record, e.g. "country".
	ClassifyField string

	// FieldOrder lists fields that are written first, in order.
	FieldOrder []string

	// Style overrides style detection when non-nil.
	Style *Style
}

// RegionOutcome is the per-region result of a merge.
type RegionOutcome struct {
	Region   string
	Marker   string
	Records  records.RecordSet
	Inserted int
	Err      error
}

// Result is the outcome of Merge.
type Result struct {
	// Text is the updated document.
	Text string

	// Regions lists every region that had records to insert, in plan order.
	Regions []RegionOutcome

	// Unclassified records were not inserted; a human decides where they go.
	Unclassified records.RecordSet
}

// Inserted returns the number of records written into the document.
func (r Result) Inserted() int {
	n := 0
	for _, o := range r.Regions {
		n += o.Inserted
	}
	return n
}

// Failed returns the regions whose records could not be inserted.
func (r Result) Failed() []RegionOutcome {
	var out []RegionOutcome
	for _, o := range r.Regions {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Merge inserts missing into doc under the section of each record's region.
//
// For every region with records, in plan order, the insertion point is the
// start of the next region marker after the region's own marker, or the
// array's closing bracket when no later marker exists. Records are written
// one per line with a trailing comma, indented like the region marker. If the
// entry preceding the insertion point lacks a comma, one is added.
//
// A missing region marker is recorded in that region's outcome and the other
// regions still merge. The returned error is non-nil only when the array
// itself cannot be located. The caller writes Result.Text, after backing up
// the original.
func Merge(doc string, missing records.RecordSet, plan Plan) (Result, error) {
	span, err := extract.FindArray(doc, plan.ArrayMarker)
	if err != nil {
		return Result{}, err
	}

	style := DetectStyle(span.Inner(doc))
	if plan.Style != nil {
		style = *plan.Style
	}

	cls := NewClassifier(plan.ClassifyField, plan.Regions)
	buckets := make(map[string]records.RecordSet, len(plan.Regions))
	res := Result{Text: doc}
	for _, r := range missing {
		name, ok := cls.Region(r)
		if !ok {
			res.Unclassified = append(res.Unclassified, r)
			continue
		}
		buckets[name] = append(buckets[name], r)
	}

	for _, region := range plan.Regions {
		recs := buckets[region.Name]
		if len(recs) == 0 {
			continue
		}
		// A region listed twice in the plan is merged once.
		delete(buckets, region.Name)

		out := RegionOutcome{Region: region.Name, Marker: region.Marker, Records: recs}
		text, err := insertRegion(res.Text, recs, region, plan, style)
		if err != nil {
			out.Err = err
		} else {
			res.Text = text
			out.Inserted = len(recs)
		}
		res.Regions = append(res.Regions, out)
	}

	return res, nil
}

func insertRegion(doc string, recs records.RecordSet, region Region, plan Plan, style Style) (string, error) {
	span, err := extract.FindArray(doc, plan.ArrayMarker)
	if err != nil {
		return "", err
	}

	at := markerWithin(doc, region.Marker, span.Open, span.Open+1, span.Close)
	if at < 0 || region.Marker == "" {
		return "", &RegionError{Region: region.Name, Marker: region.Marker}
	}

	end := span.Close
	from := at + len(region.Marker)
	for _, other := range plan.Regions {
		if other.Marker == "" || other.Marker == region.Marker {
			continue
		}
		if i := markerWithin(doc, other.Marker, span.Open, from, end); i >= 0 {
			end = i
		}
	}

	indent := lineIndent(doc, at)
	var block strings.Builder
	for _, r := range recs {
		block.WriteString(indent)
		block.WriteString(Serialize(r, style, plan.FieldOrder))
		block.WriteString(",\n")
	}

	pos := end
	lineStart := strings.LastIndexByte(doc[:pos], '\n') + 1
	prefix := ""
	if strings.TrimSpace(doc[lineStart:pos]) == "" {
		pos = lineStart
	} else {
		prefix = "\n"
	}
	if pos <= span.Open {
		pos, prefix = end, "\n"
	}

	// Keep the preceding entry separated from the inserted block.
	if last := lastSignificant(doc, span.Open+1, pos); last >= 0 && doc[last] != ',' {
		doc = doc[:last+1] + "," + doc[last+1:]
		pos++
	}

	return doc[:pos] + prefix + block.String() + doc[pos:], nil
}

// markerWithin returns the offset of the first occurrence of marker in
// [from, to) that stands alone on its line, blanks aside, or -1. The
// array's opening bracket counts as a line start, so a marker quoted
// inside a value never matches.
func markerWithin(s, marker string, open, from, to int) int {
	if marker == "" {
		return -1
	}
	for from < to {
		i := strings.Index(s[from:to], marker)
		if i < 0 {
			return -1
		}
		at := from + i
		if blankBefore(s, at, open) && blankAfter(s, at+len(marker)) {
			return at
		}
		from = at + 1
	}
	return -1
}

func blankBefore(s string, at, open int) bool {
	for i := at - 1; i >= 0; i-- {
		switch {
		case s[i] == '\n' || i == open:
			return true
		case s[i] != ' ' && s[i] != '\t':
			return false
		}
	}
	return true
}

func blankAfter(s string, at int) bool {
	for i := at; i < len(s); i++ {
		switch s[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(s string, offset int) string {
	start := strings.LastIndexByte(s[:offset], '\n') + 1
	end := start
	for end < len(s) && (s[end] == ' ' || s[end] == '\t') {
		end++
	}
	return s[start:end]
}

// lastSignificant returns the offset of the last character in [from, to)
// that is neither whitespace nor part of a comment, or -1 when there is none.
func lastSignificant(s string, from, to int) int {
	last := -1
	inStr := false
	var quote byte
	for i := from; i < to; i++ {
		c := s[i]
		if inStr {
			switch c {
			case '\\':
				i++
			case quote:
				inStr = false
			}
			last = i
			continue
		}
		if c == '/' && i+1 < to {
			switch s[i+1] {
			case '/':
				nl := strings.IndexByte(s[i:to], '\n')
				if nl < 0 {
					return last
				}
				i += nl
				continue
			case '*':
				e := strings.Index(s[i+2:to], "*/")
				if e < 0 {
					return last
				}
				i += e + 3
				continue
			}
		}
		switch c {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			continue
		case '"', '\'':
			inStr = true
			quote = c
		}
		last = i
	}
	if last >= to {
		last = to - 1
	}
	return last
}
