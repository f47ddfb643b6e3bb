// Package sqlscan provides quote-aware scanning over raw cell SQL: stripping
// line comments, splitting statements, and classifying the leading word. It
// never interprets the SQL beyond quoting and comment boundaries.
package sqlscan

import (
	"strings"
)

type scanner struct {
	input    string
	position int
	current  byte
}

func newScanner(input string) *scanner {
	s := &scanner{input: input}
	s.readChar()

	return s
}

// readChar reads the next byte. Multibyte runes pass through untouched since
// every boundary this scanner cares about is ASCII.
func (s *scanner) readChar() {
	if s.position >= len(s.input) {
		s.current = 0
		s.position++

		return
	}

	s.current = s.input[s.position]
	s.position++
}

// peekChar looks ahead at the next byte
func (s *scanner) peekChar() byte {
	if s.position >= len(s.input) {
		return 0
	}

	return s.input[s.position]
}

// copyString copies a quoted literal through to out, including both
// delimiters. Backslash escapes and doubled delimiters stay inside the
// literal. An unterminated literal is copied to end of input.
func (s *scanner) copyString(out *strings.Builder, delimiter byte) {
	out.WriteByte(delimiter)
	s.readChar()

	for s.current != 0 {
		if s.current == '\\' {
			out.WriteByte(s.current)
			s.readChar()

			if s.current != 0 {
				out.WriteByte(s.current)
				s.readChar()
			}

			continue
		}

		if s.current == delimiter {
			if s.peekChar() == delimiter {
				out.WriteByte(s.current)
				s.readChar()
				out.WriteByte(s.current)
				s.readChar()

				continue
			}

			out.WriteByte(s.current)
			s.readChar()

			return
		}

		out.WriteByte(s.current)
		s.readChar()
	}
}

// copyDollarQuote copies a PostgreSQL dollar-quoted literal ($tag$ ... $tag$)
// through to out. Called with current positioned on the opening '$'. A '$'
// that does not open a dollar quote is copied through as plain text.
func (s *scanner) copyDollarQuote(out *strings.Builder) {
	start := s.position - 1

	s.readChar()

	for s.current != 0 && isTagByte(s.current) {
		s.readChar()
	}

	if s.current != '$' {
		end := s.position - 1
		if end > len(s.input) {
			end = len(s.input)
		}

		out.WriteString(s.input[start:end])

		return
	}

	s.readChar()

	delim := s.input[start : s.position-1]
	out.WriteString(delim)

	for s.current != 0 {
		if s.current == '$' && strings.HasPrefix(s.input[s.position-1:], delim) {
			out.WriteString(delim)

			for range len(delim) {
				s.readChar()
			}

			return
		}

		out.WriteByte(s.current)
		s.readChar()
	}
}

func isTagByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// copyBlockComment copies a /* ... */ comment through to out so its content
// is never mistaken for quotes or line comments. Nested comments are not
// tracked; the first terminator closes the comment.
func (s *scanner) copyBlockComment(out *strings.Builder) {
	out.WriteByte(s.current) // '/'
	s.readChar()
	out.WriteByte(s.current) // '*'
	s.readChar()

	for s.current != 0 {
		if s.current == '*' && s.peekChar() == '/' {
			out.WriteByte(s.current)
			s.readChar()
			out.WriteByte(s.current)
			s.readChar()

			return
		}

		out.WriteByte(s.current)
		s.readChar()
	}
}

// skipLineComment consumes from "--" to end of line, leaving the newline for
// the caller so physical line structure survives.
func (s *scanner) skipLineComment() {
	for s.current != 0 && s.current != '\n' {
		s.readChar()
	}
}

// StripLineComments removes "--" comments from text while leaving quoted
// strings, dollar-quoted strings, and block comments intact. Newlines are
// preserved so multi-line statements keep their shape.
func StripLineComments(text string) string {
	var out strings.Builder

	out.Grow(len(text))

	s := newScanner(text)

	for s.current != 0 {
		switch {
		case s.current == '\'' || s.current == '"' || s.current == '`':
			s.copyString(&out, s.current)
		case s.current == '$':
			s.copyDollarQuote(&out)
		case s.current == '/' && s.peekChar() == '*':
			s.copyBlockComment(&out)
		case s.current == '-' && s.peekChar() == '-':
			s.skipLineComment()
		default:
			out.WriteByte(s.current)
			s.readChar()
		}
	}

	return out.String()
}

// SplitStatements splits text on semicolons that sit outside quoted strings,
// dollar-quoted strings, and comments. Empty statements are dropped.
func SplitStatements(text string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}

		current.Reset()
	}

	s := newScanner(text)

	for s.current != 0 {
		switch {
		case s.current == '\'' || s.current == '"' || s.current == '`':
			s.copyString(&current, s.current)
		case s.current == '$':
			s.copyDollarQuote(&current)
		case s.current == '/' && s.peekChar() == '*':
			s.copyBlockComment(&current)
		case s.current == '-' && s.peekChar() == '-':
			s.skipLineComment()
		case s.current == ';':
			flush()
			s.readChar()
		default:
			current.WriteByte(s.current)
			s.readChar()
		}
	}

	flush()

	return statements
}

// ContainsWord reports whether the statement contains the given word outside
// of quoted strings and comments. Matching is case-insensitive and respects
// word boundaries, so "returning" does not match "returning_id".
func ContainsWord(stmt, word string) bool {
	var discard strings.Builder

	s := newScanner(stmt)

	for s.current != 0 {
		switch {
		case s.current == '\'' || s.current == '"' || s.current == '`':
			s.copyString(&discard, s.current)
		case s.current == '$':
			s.copyDollarQuote(&discard)
		case s.current == '/' && s.peekChar() == '*':
			s.copyBlockComment(&discard)
		case s.current == '-' && s.peekChar() == '-':
			s.skipLineComment()
		case isTagByte(s.current):
			start := s.position - 1

			for s.current != 0 && isTagByte(s.current) {
				s.readChar()
			}

			end := s.position - 1
			if end > len(s.input) {
				end = len(s.input)
			}

			if strings.EqualFold(s.input[start:end], word) {
				return true
			}
		default:
			s.readChar()
		}
	}

	return false
}

// FirstWord returns the first word of a statement, lowercased, skipping
// leading whitespace and comments.
func FirstWord(stmt string) string {
	s := newScanner(stmt)

	for {
		switch {
		case s.current == 0:
			return ""
		case s.current == ' ' || s.current == '\t' || s.current == '\r' || s.current == '\n':
			s.readChar()
		case s.current == '-' && s.peekChar() == '-':
			s.skipLineComment()
		case s.current == '/' && s.peekChar() == '*':
			var discard strings.Builder

			s.copyBlockComment(&discard)
		default:
			var word strings.Builder

			for isTagByte(s.current) {
				word.WriteByte(s.current)
				s.readChar()
			}

			return strings.ToLower(word.String())
		}
	}
}
