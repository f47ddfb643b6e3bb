// Package dispatch runs notebook SQL cells: it parses the cell header,
// resolves the target connection, expands parameter templates and executes
// the resulting statements, applying the recoverable-versus-fatal error
// policy on failure.
package dispatch

import (
	"strings"
	"unicode"

	pc "github.com/shibukawa/parsercombinator"

	"github.com/shibukawa/notesql/sqlscan"
)

// ScalarDirective asks for a bare value instead of a one-cell table.
const ScalarDirective = "#scalar"

// CellHeader is the parsed form of a cell's leading token sequence:
//
//	<selector> [resultvar <<] [#scalar] <body>
//
// Selector is the connection handle or human name. Body is the remaining
// cell text with line comments stripped, so a meta-command preceded by
// comment lines is still recognized as a meta-command.
type CellHeader struct {
	Selector  string
	ResultVar string
	Scalar    bool
	Body      string
}

// word is one whitespace-delimited header token plus its byte offset, so
// the body can be sliced out of the original cell text untouched.
type word struct {
	text  string
	start int
}

// headerWordCap bounds lexing: the header consumes at most four tokens
// (selector, result variable, "<<", "#scalar"), so a fifth word can only
// mark where the body starts.
const headerWordCap = 5

func lexWords(cell string) []pc.Token[word] {
	var words []pc.Token[word]

	line, col := 1, 1
	i := 0

	for i < len(cell) && len(words) < headerWordCap {
		for i < len(cell) && isSpaceByte(cell[i]) {
			if cell[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}

		start, startCol := i, col
		for i < len(cell) && !isSpaceByte(cell[i]) {
			i++
			col++
		}

		if start == i {
			break
		}

		words = append(words, pc.Token[word]{
			Type: "word",
			Pos:  &pc.Pos{Line: line, Col: startCol, Index: start},
			Val:  word{text: cell[start:i], start: start},
			Raw:  cell[start:i],
		})
	}

	return words
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func matchWord(pred func(string) bool) pc.Parser[word] {
	return func(pctx *pc.ParseContext[word], tokens []pc.Token[word]) (int, []pc.Token[word], error) {
		if len(tokens) > 0 && pred(tokens[0].Val.text) {
			return 1, tokens[:1], nil
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// isIdentifier reports whether s could name a notebook variable. The check
// keeps "select" and friends matchable too; the grammar disambiguates via
// the "<<" that must follow.
func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}

		return false
	}

	return s != ""
}

var (
	selectorWord = matchWord(func(s string) bool { return true })
	resultVar    = matchWord(isIdentifier)
	shiftMarker  = matchWord(func(s string) bool { return s == "<<" })
	scalarFlag   = matchWord(func(s string) bool { return s == ScalarDirective })

	cellHeader = pc.Seq(
		selectorWord,
		pc.Optional(pc.Seq(resultVar, shiftMarker)),
		pc.Optional(scalarFlag),
	)
)

// ParseCell splits a cell into its header tokens and SQL body. It never
// fails: an empty cell yields a zero-valued header, and anything the
// optional markers do not claim stays in the body verbatim.
func ParseCell(cell string) CellHeader {
	words := lexWords(cell)
	if len(words) == 0 {
		return CellHeader{}
	}

	pctx := pc.NewParseContext[word]()

	consumed, matched, err := cellHeader(pctx, words)
	if err != nil {
		consumed, matched = 1, words[:1]
	}

	header := CellHeader{Selector: matched[0].Val.text}

	rest := matched[1:]
	if len(rest) >= 2 && rest[1].Val.text == "<<" {
		header.ResultVar = rest[0].Val.text
		rest = rest[2:]
	}

	if len(rest) >= 1 && rest[0].Val.text == ScalarDirective {
		header.Scalar = true
	}

	if consumed < len(words) {
		body := cell[words[consumed].Val.start:]
		header.Body = strings.TrimSpace(sqlscan.StripLineComments(body))
	}

	return header
}
