package sqlscan

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestStripLineComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain statement untouched",
			input:    "select a, b from t",
			expected: "select a, b from t",
		},
		{
			name:     "trailing comment removed",
			input:    "select 1 -- the answer",
			expected: "select 1 ",
		},
		{
			name:     "comment on its own line keeps newline",
			input:    "select 1\n-- note\nfrom t",
			expected: "select 1\n\nfrom t",
		},
		{
			name:     "dashes inside single quotes survive",
			input:    "select '--not a comment' from t",
			expected: "select '--not a comment' from t",
		},
		{
			name:     "dashes inside double quotes survive",
			input:    `select "a--b" from t`,
			expected: `select "a--b" from t`,
		},
		{
			name:     "dashes inside backticks survive",
			input:    "select `a--b` from t",
			expected: "select `a--b` from t",
		},
		{
			name:     "doubled quote escape does not end the string",
			input:    "select 'it''s -- fine' -- gone",
			expected: "select 'it''s -- fine' ",
		},
		{
			name:     "backslash escape does not end the string",
			input:    `select 'a\'b -- kept'`,
			expected: `select 'a\'b -- kept'`,
		},
		{
			name:     "block comment passes through",
			input:    "select 1 /* -- not a line comment */ from t",
			expected: "select 1 /* -- not a line comment */ from t",
		},
		{
			name:     "dollar quote passes through",
			input:    "select $tag$ -- body $tag$ -- tail",
			expected: "select $tag$ -- body $tag$ ",
		},
		{
			name:     "bare dollar is plain text",
			input:    "select $1 -- positional",
			expected: "select $1 ",
		},
		{
			name:     "single dash is arithmetic",
			input:    "select 5-2",
			expected: "select 5-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripLineComments(tt.input))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single statement without terminator",
			input:    "select 1",
			expected: []string{"select 1"},
		},
		{
			name:     "two statements",
			input:    "create table t (a int); insert into t values (1)",
			expected: []string{"create table t (a int)", "insert into t values (1)"},
		},
		{
			name:     "trailing semicolon yields no empty statement",
			input:    "select 1;",
			expected: []string{"select 1"},
		},
		{
			name:     "semicolon inside string is not a split point",
			input:    "select 'a;b'; select 2",
			expected: []string{"select 'a;b'", "select 2"},
		},
		{
			name:     "semicolon inside dollar quote is not a split point",
			input:    "select $$x;y$$; select 2",
			expected: []string{"select $$x;y$$", "select 2"},
		},
		{
			name:     "semicolon inside block comment is not a split point",
			input:    "select 1 /* a;b */; select 2",
			expected: []string{"select 1 /* a;b */", "select 2"},
		},
		{
			name:     "line comments are removed during splitting",
			input:    "select 1; -- done\nselect 2",
			expected: []string{"select 1", "select 2"},
		},
		{
			name:     "empty input",
			input:    "   \n  ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitStatements(tt.input))
		})
	}
}

func TestFirstWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple select", input: "SELECT 1", expected: "select"},
		{name: "leading whitespace", input: "  \n\tbegin", expected: "begin"},
		{name: "leading line comment", input: "-- note\nBEGIN transaction", expected: "begin"},
		{name: "leading block comment", input: "/* x */ Insert into t", expected: "insert"},
		{name: "empty", input: "", expected: ""},
		{name: "punctuation first", input: "(select 1)", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FirstWord(tt.input))
		})
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		word     string
		expected bool
	}{
		{
			name:     "keyword present",
			input:    "INSERT INTO t (a) VALUES (1) RETURNING id",
			word:     "returning",
			expected: true,
		},
		{
			name:     "keyword absent",
			input:    "INSERT INTO t (a) VALUES (1)",
			word:     "returning",
			expected: false,
		},
		{
			name:     "keyword inside string literal",
			input:    "insert into t (a) values ('returning soon')",
			word:     "returning",
			expected: false,
		},
		{
			name:     "keyword inside line comment",
			input:    "update t set a = 1 -- returning\n",
			word:     "returning",
			expected: false,
		},
		{
			name:     "identifier prefix does not match",
			input:    "update t set returning_flag = 1",
			word:     "returning",
			expected: false,
		},
		{
			name:     "case insensitive",
			input:    "delete from t Returning *",
			word:     "returning",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContainsWord(tt.input, tt.word))
		})
	}
}
