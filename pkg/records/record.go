// Package records defines the flat, ordered record type shared by the
// extractor, differ and merger.
package records

// Field is one named value of a Record.
//
// Value holds the decoded string for string literals. When Raw is true the
// source value was not a string (number, boolean, nested array or object)
// and Value holds its compact JSON text, which is written back verbatim.
type Field struct {
	Name  string
	Value string
	Raw   bool
}

// Record is an ordered field-name to value mapping. Field order is the
// order in which fields appeared in the source literal.
type Record struct {
	Fields []Field
}

// RecordSet is an ordered sequence of Records from one source document.
type RecordSet []Record

// New builds a Record of string fields from alternating name/value pairs.
// A trailing name without a value is ignored.
func New(pairs ...string) Record {
	var r Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Get returns the value of field name and whether it is present.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of field name, or "" when absent.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Set assigns a string value. An existing field keeps its position.
func (r *Record) Set(name, value string) {
	r.put(Field{Name: name, Value: value})
}

// SetRaw assigns a raw JSON literal value.
func (r *Record) SetRaw(name, raw string) {
	r.put(Field{Name: name, Value: raw, Raw: true})
}

func (r *Record) put(f Field) {
	for i := range r.Fields {
		if r.Fields[i].Name == f.Name {
			r.Fields[i] = f
			return
		}
	}
	r.Fields = append(r.Fields, f)
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.Fields) }

// Project returns the value of field for each record, in set order.
// Records without the field contribute "".
func (s RecordSet) Project(field string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, r.Value(field))
	}
	return out
}

// Filter returns the records for which keep returns true.
func (s RecordSet) Filter(keep func(Record) bool) RecordSet {
	var out RecordSet
	for _, r := range s {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
