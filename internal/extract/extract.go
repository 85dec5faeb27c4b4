// Package extract pulls Records out of array literals embedded in
// hand-authored HTML or JavaScript.
//
// Nothing in the source is executed. The array is located by a marker
// string, split into object literals by a string-aware brace scanner,
// normalized to strict JSON and decoded.
package extract

import (
	"errors"

	"go.uber.org/zap"

	"recmerge/pkg/records"
)

// previewLen bounds the candidate text included in warnings.
const previewLen = 100

// Options configures Extract.
type Options struct {
	// Source names the document in errors and log entries.
	Source string

	// Logger receives one warning per skipped candidate. Nil disables logging.
	Logger *zap.Logger
}

// Result is the outcome of extracting one document.
type Result struct {
	Records records.RecordSet
	Span    Span

	// Candidates counts top-level elements that looked like object literals.
	Candidates int

	// Rejected counts elements that were not balanced object literals.
	Rejected int

	// ParseErrors holds the candidates that failed to normalize or decode.
	ParseErrors []*ParseError
}

// Skipped returns the number of elements that produced no Record.
func (r Result) Skipped() int {
	return r.Rejected + len(r.ParseErrors)
}

// Extract returns the Records of the array literal introduced by marker.
//
// Errors:
//   - *Error{Kind: MarkerNotFound} when marker is absent.
//   - *Error{Kind: UnterminatedArray} when the array never closes.
//
// Individual bad elements are not errors: they are logged, counted in the
// Result and skipped. An empty array yields an empty RecordSet.
func Extract(text, marker string, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	span, err := FindArray(text, marker)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Source = opts.Source
		}
		return Result{}, err
	}

	res := Result{Span: span, Records: records.RecordSet{}}
	base := span.Open + 1

	cands, bad := splitObjects(span.Inner(text))
	for _, r := range bad {
		res.Rejected++
		log.Warn("discarded array element",
			zap.String("source", opts.Source),
			zap.Int("offset", base+r.Offset),
			zap.String("reason", r.Reason),
			zap.String("preview", preview(r.Text)),
		)
	}

	res.Candidates = len(cands)
	for _, c := range cands {
		rec, err := ParseRecord(Normalize(c.Text))
		if err != nil {
			pe := &ParseError{
				Source:  opts.Source,
				Offset:  base + c.Offset,
				Preview: preview(c.Text),
				Err:     err,
			}
			res.ParseErrors = append(res.ParseErrors, pe)
			log.Warn("failed to parse record",
				zap.String("source", pe.Source),
				zap.Int("offset", pe.Offset),
				zap.String("preview", pe.Preview),
				zap.Error(err),
			)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
