package extract

import (
	"strings"
)

// Span locates an array literal inside a document.
//
// Start is the offset of the marker, Open the offset of the opening '['
// and Close the offset of the matching ']'.
type Span struct {
	Start int
	Open  int
	Close int
}

// Inner returns the text strictly between the brackets.
func (s Span) Inner(text string) string {
	return text[s.Open+1 : s.Close]
}

// Literal returns the text from the marker through the closing bracket.
func (s Span) Literal(text string) string {
	return text[s.Start : s.Close+1]
}

// FindArray locates marker in text and the bracket-balanced array literal
// that starts at or after it.
//
// Brackets are counted over the raw character stream. Array brackets are not
// expected inside string values of the documents this tool reads; object
// braces are, which is why splitObjects is string-aware and this is not.
func FindArray(text, marker string) (Span, error) {
	start := strings.Index(text, marker)
	if start < 0 {
		return Span{}, &Error{Kind: MarkerNotFound, Marker: marker}
	}

	span := Span{Start: start, Open: -1}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '[':
			if span.Open < 0 {
				span.Open = i
			}
			depth++
		case ']':
			if span.Open < 0 {
				continue
			}
			depth--
			if depth == 0 {
				span.Close = i
				return span, nil
			}
		}
	}
	return Span{}, &Error{Kind: UnterminatedArray, Marker: marker}
}

// candidate is the text of one top-level element of the array, with
// comments removed. Offset is relative to the scanned content.
type candidate struct {
	Text   string
	Offset int
}

// rejected is an element that was not a balanced object literal.
type rejected struct {
	Text   string
	Offset int
	Reason string
}

// splitObjects splits the content of an array literal into top-level
// object literals.
//
// The scan keeps a brace depth, an in-string flag (with the quote character
// that opened the string) and an escape flag. A backslash makes the next
// character literal. Braces count only outside strings. Line and block
// comments outside strings are dropped, so region markers such as
// "// == EUROPE ==" between elements do not end up in candidates.
//
// An element is emitted only when it starts with '{', ends with '}' and the
// scan closed every brace and string it opened; anything else is rejected.
func splitObjects(content string) ([]candidate, []rejected) {
	var (
		out      []candidate
		bad      []rejected
		cur      strings.Builder
		curStart = -1
		depth    int
		inStr    bool
		quote    byte
		escape   bool
		broken   bool
	)

	flush := func() {
		text := strings.TrimSpace(cur.String())
		off := curStart
		cur.Reset()
		curStart = -1

		unbalanced := depth != 0 || inStr || broken
		depth, inStr, escape, broken = 0, false, false, false

		if text == "" {
			return
		}
		switch {
		case unbalanced:
			bad = append(bad, rejected{Text: text, Offset: off, Reason: "unbalanced braces or quotes"})
		case !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}"):
			bad = append(bad, rejected{Text: text, Offset: off, Reason: "not an object literal"})
		default:
			out = append(out, candidate{Text: text, Offset: off})
		}
	}

	write := func(i int, c byte) {
		if curStart < 0 && !isSpace(c) {
			curStart = i
		}
		cur.WriteByte(c)
	}

	for i := 0; i < len(content); i++ {
		c := content[i]

		if escape {
			escape = false
			write(i, c)
			continue
		}
		if c == '\\' {
			escape = true
			write(i, c)
			continue
		}

		if inStr {
			if c == quote {
				inStr = false
			}
			write(i, c)
			continue
		}

		if c == '/' && i+1 < len(content) {
			switch content[i+1] {
			case '/':
				nl := strings.IndexByte(content[i:], '\n')
				if nl < 0 {
					i = len(content) - 1
				} else {
					i += nl - 1
				}
				continue
			case '*':
				end := strings.Index(content[i+2:], "*/")
				if end < 0 {
					i = len(content) - 1
				} else {
					i += end + 3
				}
				continue
			}
		}

		switch c {
		case '"', '\'':
			inStr = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				broken = true
				depth = 0
			}
		case ',':
			if depth == 0 {
				flush()
				continue
			}
		}
		write(i, c)
	}
	flush()

	return out, bad
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
