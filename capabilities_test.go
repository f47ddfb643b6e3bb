package notesql

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestRequiresExplicitCommit(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		expected bool
	}{
		{"postgres commits", DialectPostgres, true},
		{"mysql commits", DialectMySQL, true},
		{"sqlite commits", DialectSQLite, true},
		{"athena never commits", DialectAthena, false},
		{"clickhouse never commits", DialectClickHouse, false},
		{"mssql never commits", DialectMSSQL, false},
		{"unknown dialects default to committing", Dialect("exoticdb"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequiresExplicitCommit(tt.dialect))
		})
	}
}

func TestCommitBlacklisted(t *testing.T) {
	assert.True(t, CommitBlacklisted(DialectClickHouse))
	assert.True(t, CommitBlacklisted(Dialect("teradata")))
	assert.False(t, CommitBlacklisted(DialectPostgres))
}

func TestMarkNoExplicitCommit(t *testing.T) {
	t.Run("SuppressesCommits", func(t *testing.T) {
		// Unique name so the global list does not leak into other tests
		dialect := Dialect("quietdb")
		assert.True(t, RequiresExplicitCommit(dialect))

		assert.NoError(t, MarkNoExplicitCommit("quietdb"))
		assert.False(t, RequiresExplicitCommit(dialect))
		assert.True(t, CommitBlacklisted(dialect))
	})

	t.Run("RejectsSubDialectNames", func(t *testing.T) {
		err := MarkNoExplicitCommit("clickhouse+http")
		assert.Error(t, err)
		assert.IsError(t, err, ErrSubDialectNotAllowed)
	})
}

func TestCapabilitiesMatrix(t *testing.T) {
	// Every declared dialect carries a full feature row
	for dialect, caps := range Capabilities {
		_, hasCommit := caps[FeatureExplicitCommit]
		assert.True(t, hasCommit, "dialect %s is missing the commit flag", dialect)
	}

	assert.False(t, Capabilities[DialectSQLite][FeatureSchemas])
	assert.True(t, Capabilities[DialectPostgres][FeatureSchemas])
}
