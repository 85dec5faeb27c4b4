package extract

import (
	"errors"
	"fmt"
)

// Kind classifies structural extraction failures.
type Kind int

const (
	// MarkerNotFound means the array marker does not occur in the source.
	MarkerNotFound Kind = iota + 1

	// UnterminatedArray means the marker was found but its array literal
	// never closes before the end of the document.
	UnterminatedArray
)

var (
	ErrMarkerNotFound    = errors.New("array marker not found")
	ErrUnterminatedArray = errors.New("array literal is not terminated")
)

func (k Kind) String() string {
	switch k {
	case MarkerNotFound:
		return "MarkerNotFound"
	case UnterminatedArray:
		return "UnterminatedArray"
	default:
		return "Unknown"
	}
}

// Error is a structural extraction failure for one source document. It is
// fatal for that source: no records can be produced from it.
type Error struct {
	Kind   Kind
	Source string
	Marker string
}

func (e *Error) Error() string {
	src := e.Source
	if src == "" {
		src = "<input>"
	}
	return fmt.Sprintf("%s: %v (marker %q)", src, e.Unwrap(), e.Marker)
}

// Unwrap maps the kind onto its sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case MarkerNotFound:
		return ErrMarkerNotFound
	case UnterminatedArray:
		return ErrUnterminatedArray
	default:
		return nil
	}
}

// ParseError describes one candidate object literal that could not be
// turned into a Record. It is never fatal; Extract logs it and moves on.
type ParseError struct {
	Source  string
	Offset  int
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse record at offset %d: %v", e.Source, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
