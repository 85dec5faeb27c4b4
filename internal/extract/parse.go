package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"recmerge/pkg/records"
)

// ParseRecord decodes one strict-JSON object into a Record, keeping the
// field order of the source.
//
// String values are stored decoded. null values are treated as absent.
// Other values (numbers, booleans, arrays, objects) are kept as compact raw
// JSON so they can be written back unchanged. A repeated key keeps its
// first position and its last value.
func ParseRecord(text string) (records.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return records.Record{}, fmt.Errorf("read object start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return records.Record{}, fmt.Errorf("expected object, got %v", tok)
	}

	var rec records.Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return records.Record{}, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return records.Record{}, fmt.Errorf("expected string key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return records.Record{}, fmt.Errorf("read value of %q: %w", key, err)
		}

		switch {
		case bytes.Equal(raw, []byte("null")):
			continue
		case len(raw) > 0 && raw[0] == '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return records.Record{}, fmt.Errorf("decode value of %q: %w", key, err)
			}
			rec.Set(key, s)
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, raw); err != nil {
				return records.Record{}, fmt.Errorf("compact value of %q: %w", key, err)
			}
			rec.SetRaw(key, buf.String())
		}
	}

	if _, err := dec.Token(); err != nil {
		return records.Record{}, fmt.Errorf("read object end: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return records.Record{}, errors.New("trailing data after object")
	}
	return rec, nil
}
