package introspect

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MatchWildcard matches a name against a simple * pattern. Patterns
// without a wildcard must match exactly.
func MatchWildcard(pattern, text string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == text
	}

	matched, err := filepath.Match(pattern, text)
	if err != nil {
		return pattern == text
	}

	return matched
}

// ParseGlob splits a meta-command argument of the form "[schema.]name" on
// the leftmost dot, so "analytics.orders_*" targets one schema while
// "a.b.c" means name glob "b.c" inside schema "a". Without a dot the
// schema glob comes back empty, which callers read as "default schema
// only". A lone "." degenerates to every relation in the default schema.
func ParseGlob(arg string) (schemaGlob, nameGlob string) {
	if arg == "." {
		return "", "*"
	}

	if idx := strings.IndexByte(arg, '.'); idx >= 0 {
		return arg[:idx], arg[idx+1:]
	}

	return "", arg
}

// CompileGlob converts a relation glob to an anchored regular expression:
// * matches any run, ? matches one character, and bare text without
// either becomes a prefix match when implyPrefix is set. Only identifier
// characters pass through, so no regular-expression syntax can sneak in
// from user input.
func CompileGlob(glob string, implyPrefix bool) *regexp.Regexp {
	var buf strings.Builder

	buf.WriteByte('^')

	sawGlobChar := false

	for _, char := range glob {
		switch {
		case char == '*':
			buf.WriteString(".*")

			sawGlobChar = true
		case char == '?':
			buf.WriteByte('.')

			sawGlobChar = true
		case allowedGlobChar(char):
			buf.WriteRune(char)
		}
	}

	if !sawGlobChar && implyPrefix {
		buf.WriteString(".*")
	}

	buf.WriteByte('$')

	return regexp.MustCompile(buf.String())
}

func allowedGlobChar(r rune) bool {
	return r == '_' || r == ' ' ||
		('a' <= r && r <= 'z') ||
		('A' <= r && r <= 'Z') ||
		('0' <= r && r <= '9')
}
