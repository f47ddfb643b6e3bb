package notesql

import (
	"fmt"
	"strings"
	"sync"
)

// Feature represents DB-specific feature flags
type Feature int

const (
	FeatureExplicitCommit  Feature = iota + 1 // statement results must be committed explicitly
	FeatureSchemas                            // dialect exposes schema namespaces
	FeatureViewDefinitions                    // view source text is queryable
	// Add more features as needed
)

// Capabilities defines which SQL features are supported by each dialect
var Capabilities = map[Dialect]map[Feature]bool{
	DialectPostgres: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectCockroach: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectRedshift: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectMySQL: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectMariaDB: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectSingleStore: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectSQLite: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         false,
		FeatureViewDefinitions: true,
	},
	DialectDuckDB: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectBigQuery: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectSnowflake: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectAthena: {
		FeatureExplicitCommit:  false,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectClickHouse: {
		FeatureExplicitCommit:  false,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectDatabricks: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectMSSQL: {
		FeatureExplicitCommit:  false,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
	DialectTrino: {
		FeatureExplicitCommit:  true,
		FeatureSchemas:         true,
		FeatureViewDefinitions: true,
	},
}

var (
	noCommitMu sync.Mutex
	// Dialects whose drivers reject transaction control statements. Explicit
	// commits are never issued for them regardless of the capability matrix.
	noCommitDialects = map[Dialect]struct{}{
		DialectAthena:     {},
		DialectClickHouse: {},
		DialectMSSQL:      {},
		"ingres":          {},
		"teradata":        {},
		"vertica":         {},
	}
)

// RequiresExplicitCommit reports whether statements executed against the
// dialect should be followed by an explicit commit.
func RequiresExplicitCommit(d Dialect) bool {
	noCommitMu.Lock()
	_, blocked := noCommitDialects[d]
	noCommitMu.Unlock()

	if blocked {
		return false
	}

	caps, ok := Capabilities[d]
	if !ok {
		// Unknown dialects default to committing.
		return true
	}

	return caps[FeatureExplicitCommit]
}

// CommitBlacklisted reports whether the dialect is on the no-commit list.
// Connections force their commit flag off for these even when the caller
// asked for explicit commits.
func CommitBlacklisted(d Dialect) bool {
	noCommitMu.Lock()
	defer noCommitMu.Unlock()
	_, blocked := noCommitDialects[d]
	return blocked
}

// MarkNoExplicitCommit suppresses explicit commits for a dialect at runtime.
// Sub-dialect names ("clickhouse+http") must be resolved to their base
// dialect first and are rejected.
func MarkNoExplicitCommit(name string) error {
	if strings.ContainsRune(name, '+') {
		return fmt.Errorf("%w: %q names a sub-driver, pass the base dialect name", ErrSubDialectNotAllowed, name)
	}

	noCommitMu.Lock()
	noCommitDialects[Dialect(name)] = struct{}{}
	noCommitMu.Unlock()

	return nil
}
