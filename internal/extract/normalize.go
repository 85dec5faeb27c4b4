package extract

import (
	"strings"
)

// Normalize rewrites a hand-authored JavaScript object literal into text a
// strict JSON parser accepts:
//
//   - bare identifier keys are quoted (name: -> "name":)
//   - single-quoted strings become double-quoted; embedded double quotes
//     are escaped and \' escapes are unwrapped
//   - double-quoted strings are copied verbatim, so apostrophes inside them
//     are never touched (only \' is unwrapped, which JSON rejects)
//   - commas directly before '}' or ']' are dropped
//
// Nothing is evaluated. Text that is not valid after these rewrites is left
// for the JSON parser to reject.
func Normalize(src string) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"':
			i = copyDoubleQuoted(&b, src, i)

		case c == '\'':
			i = convertSingleQuoted(&b, src, i)

		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			ident := src[i:j]
			if followedByColon(src, j) {
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
			} else {
				b.WriteString(ident)
			}
			i = j

		case c == '-' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(src) && isNumberPart(src[j]) {
				j++
			}
			b.WriteString(src[i:j])
			i = j

		case c == ',':
			if closesNext(src, i+1) {
				i++
				continue
			}
			b.WriteByte(c)
			i++

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// copyDoubleQuoted copies the string starting at src[i] and returns the
// offset just past its closing quote.
func copyDoubleQuoted(b *strings.Builder, src string, i int) int {
	b.WriteByte('"')
	for i++; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			if src[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(src[i+1])
			}
			i++
			continue
		}
		b.WriteByte(c)
		if c == '"' {
			return i + 1
		}
	}
	return i
}

// convertSingleQuoted rewrites the single-quoted string starting at src[i]
// as a double-quoted one and returns the offset just past its closing quote.
func convertSingleQuoted(b *strings.Builder, src string, i int) int {
	b.WriteByte('"')
	for i++; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			if src[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(src[i+1])
			}
			i++
		case c == '"':
			b.WriteString(`\"`)
		case c == '\'':
			b.WriteByte('"')
			return i + 1
		default:
			b.WriteByte(c)
		}
	}
	return i
}

func followedByColon(src string, j int) bool {
	for j < len(src) && isSpace(src[j]) {
		j++
	}
	return j < len(src) && src[j] == ':'
}

func closesNext(src string, j int) bool {
	for j < len(src) && isSpace(src[j]) {
		j++
	}
	return j < len(src) && (src[j] == '}' || src[j] == ']')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isNumberPart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}
