// Package introspect reflects schema structure out of live connections:
// schema, table and view listings, column shapes and view definitions,
// with one implementation per supported dialect family.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	notesql "github.com/shibukawa/notesql"
)

var (
	// ErrUnsupportedDialect is returned for dialects without an introspector.
	ErrUnsupportedDialect = errors.New("schema introspection is not supported for dialect")
	// ErrNoSuchRelation is returned when a named table or view does not exist.
	ErrNoSuchRelation = errors.New("relation does not exist")
)

// Querier is the slice of a connection the introspectors need. It is
// satisfied by *connection.Connection, whose QueryContext runs over the
// same session as cell statements so temporary tables are visible.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Column describes one column of a table or view. Default and Comment are
// nil when the engine reports no value; empty strings count as no value so
// display layers can drop all-empty columns.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  *string
	Comment  *string
}

// Introspector reflects one connected database.
type Introspector interface {
	// DefaultSchema names the schema unqualified relations resolve to.
	// Dialects without the concept return "".
	DefaultSchema(ctx context.Context) (string, error)
	// SchemaNames lists user-visible schemas. The default schema is always
	// included even when the engine omits it from its catalog listing.
	SchemaNames(ctx context.Context) ([]string, error)
	TableNames(ctx context.Context, schema string) ([]string, error)
	ViewNames(ctx context.Context, schema string) ([]string, error)
	// Columns lists the columns of a table or view in ordinal order.
	// A relation with no columns does not exist: ErrNoSuchRelation.
	Columns(ctx context.Context, schema, relation string) ([]Column, error)
	// ViewDefinition returns the view's source text, or "" when the engine
	// cannot provide it.
	ViewDefinition(ctx context.Context, schema, view string) (string, error)
}

// New returns the introspector for a dialect. CockroachDB rides the
// PostgreSQL implementation with view deduplication, since it reports
// views in its table listing as well.
func New(dialect notesql.Dialect, q Querier) (Introspector, error) {
	switch dialect {
	case notesql.DialectPostgres, notesql.DialectRedshift:
		return &PostgresIntrospector{q: q}, nil
	case notesql.DialectCockroach:
		return &PostgresIntrospector{q: q, dedupeViews: true}, nil
	case notesql.DialectMySQL, notesql.DialectMariaDB, notesql.DialectSingleStore:
		return &MySQLIntrospector{q: q}, nil
	case notesql.DialectSQLite:
		return &SQLiteIntrospector{q: q}, nil
	case notesql.DialectDuckDB:
		return &DuckDBIntrospector{q: q}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}
}

// collectStrings drains a single-column result set.
func collectStrings(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	return out, rows.Err()
}

// nullableString converts a scanned value for Column.Default and
// Column.Comment. NULL and the empty string both mean "nothing there".
func nullableString(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}

	s := ns.String

	return &s
}

// ensureDefault appends the default schema when the catalog listing left
// it out, as BigQuery-style dialects are known to do.
func ensureDefault(schemas []string, defaultSchema string) []string {
	if defaultSchema == "" {
		return schemas
	}

	for _, s := range schemas {
		if s == defaultSchema {
			return schemas
		}
	}

	return append(schemas, defaultSchema)
}

// lowerType normalizes engine type names for display.
func lowerType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
