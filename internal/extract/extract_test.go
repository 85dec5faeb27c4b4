package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"recmerge/pkg/records"
)

const eventsMarker = "const events = ["

func TestExtract_UnquotedKeys(t *testing.T) {
	t.Parallel()

	src := `<script>const events = [{name: "Expo A", country: "uae", city: "Dubai", date: "2025-01-01"}];</script>`
	res, err := Extract(src, eventsMarker, Options{Source: "legacy"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := records.RecordSet{
		records.New("name", "Expo A", "country", "uae", "city", "Dubai", "date", "2025-01-01"),
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

// TestExtract_BracesInsideStrings verifies that braces inside quoted values
// neither split the element nor unbalance the scan.
func TestExtract_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	src := `const events = [ { name: "Expo {2025}", description: "a } b { c" } ];`
	res, err := Extract(src, eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(res.Records))
	}
	if got := res.Records[0].Value("name"); got != "Expo {2025}" {
		t.Fatalf("name=%q", got)
	}
	if got := res.Records[0].Value("description"); got != "a } b { c" {
		t.Fatalf("description=%q", got)
	}
}

func TestExtract_EscapedQuotes(t *testing.T) {
	t.Parallel()

	src := `const events = [{name: "The \"Big\" Show", city: "Paris"}, {name: "Other"}];`
	res, err := Extract(src, eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if got := res.Records[0].Value("name"); got != `The "Big" Show` {
		t.Fatalf("name=%q", got)
	}
}

func TestExtract_SingleQuotesAndApostrophes(t *testing.T) {
	t.Parallel()

	src := `const events = [
		{ name: 'Expo "Gold"', city: "Xi'an", note: 'it\'s fine' },
	];`
	res, err := Extract(src, eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := records.RecordSet{
		records.New("name", `Expo "Gold"`, "city", "Xi'an", "note", "it's fine"),
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_CommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()

	src := `const events = [
    // == EUROPE ==
    { name: "A", country: "germany", },
    /* moved from the old page */
    { name: "B", url: "https://example.com/x" },
    // == AFRICA ==
];`
	res, err := Extract(src, eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := res.Records.Project("name")
	if diff := cmp.Diff([]string{"A", "B"}, got); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if res.Records[1].Value("url") != "https://example.com/x" {
		t.Fatalf("url=%q", res.Records[1].Value("url"))
	}
	if res.Skipped() != 0 {
		t.Fatalf("expected nothing skipped, got %d", res.Skipped())
	}
}

func TestExtract_RawValuesPreserved(t *testing.T) {
	t.Parallel()

	src := `const companies = [{"name": "Acme", "employees": 12, "public": false, "links": [{"name": "LinkedIn", "url": "https://l.example"}], "logo": null}];`
	res, err := Extract(src, "const companies = [", Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := records.Record{Fields: []records.Field{
		{Name: "name", Value: "Acme"},
		{Name: "employees", Value: "12", Raw: true},
		{Name: "public", Value: "false", Raw: true},
		{Name: "links", Value: `[{"name":"LinkedIn","url":"https://l.example"}]`, Raw: true},
	}}
	if diff := cmp.Diff(records.RecordSet{want}, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EmptyArray(t *testing.T) {
	t.Parallel()

	res, err := Extract("const events = [\n// == MIDDLE_EAST ==\n];", eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Fatalf("expected empty non-nil set, got %#v", res.Records)
	}
}

func TestExtract_StructuralErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		kind     Kind
		sentinel error
	}{
		{name: "marker_missing", src: `var x = [];`, kind: MarkerNotFound, sentinel: ErrMarkerNotFound},
		{name: "never_closes", src: `const events = [{name: "A"}, [1, 2]`, kind: UnterminatedArray, sentinel: ErrUnterminatedArray},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract(tc.src, eventsMarker, Options{Source: "data.js"})
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Kind != tc.kind || e.Source != "data.js" {
				t.Fatalf("got kind=%v source=%q", e.Kind, e.Source)
			}
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tc.sentinel)
			}
		})
	}
}

// TestExtract_BadRecordIsSkipped verifies a single malformed element is
// logged and skipped while its neighbours are kept.
func TestExtract_BadRecordIsSkipped(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	src := `const events = [{name: "A"}, {name: "B" "oops"}, "stray", {name: "C"}];`

	res, err := Extract(src, eventsMarker, Options{Source: "legacy.html", Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "C"}, res.Records.Project("name")); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if len(res.ParseErrors) != 1 || res.Rejected != 1 {
		t.Fatalf("parseErrors=%d rejected=%d", len(res.ParseErrors), res.Rejected)
	}
	if res.ParseErrors[0].Source != "legacy.html" {
		t.Fatalf("parse error source=%q", res.ParseErrors[0].Source)
	}
	if logs.FilterMessage("failed to parse record").Len() != 1 {
		t.Fatalf("expected one parse warning, got %v", logs.All())
	}
	if logs.FilterMessage("discarded array element").Len() != 1 {
		t.Fatalf("expected one discard warning, got %v", logs.All())
	}
}

func TestExtract_UnbalancedElementNeverEmitted(t *testing.T) {
	t.Parallel()

	src := `const events = [{name: "A"}, {name: "B", city: {"x": 1}];`
	res, err := Extract(src, eventsMarker, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, res.Records.Project("name")); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if res.Rejected != 1 {
		t.Fatalf("rejected=%d", res.Rejected)
	}
}

func TestFindArray_Literal(t *testing.T) {
	t.Parallel()

	src := `let x = 1; const events = [[1], {a: "]"}]; tail`
	span, err := FindArray(src, eventsMarker)
	if err != nil {
		t.Fatalf("FindArray: %v", err)
	}
	// Array brackets are counted without string awareness, so the "]" inside
	// the value closes the literal early.
	if got := span.Literal(src); got != `const events = [[1], {a: "]` {
		t.Fatalf("literal=%q", got)
	}
}
