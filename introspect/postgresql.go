package introspect

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresIntrospector serves the PostgreSQL wire family: PostgreSQL,
// Redshift and, with dedupeViews set, CockroachDB.
type PostgresIntrospector struct {
	q           Querier
	dedupeViews bool
}

func (p *PostgresIntrospector) DefaultSchema(ctx context.Context) (string, error) {
	rows, err := p.q.QueryContext(ctx, `SELECT current_schema()`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var schema sql.NullString

	if rows.Next() {
		if err := rows.Scan(&schema); err != nil {
			return "", err
		}
	}

	return schema.String, rows.Err()
}

func (p *PostgresIntrospector) SchemaNames(ctx context.Context) ([]string, error) {
	schemas, err := collectStrings(p.q.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast', 'pg_extension', 'crdb_internal')
		ORDER BY schema_name`))
	if err != nil {
		return nil, err
	}

	defaultSchema, err := p.DefaultSchema(ctx)
	if err != nil {
		return nil, err
	}

	return ensureDefault(schemas, defaultSchema), nil
}

func (p *PostgresIntrospector) TableNames(ctx context.Context, schema string) ([]string, error) {
	tables, err := collectStrings(p.q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema))
	if err != nil {
		return nil, err
	}

	if !p.dedupeViews {
		return tables, nil
	}

	// CockroachDB lists views as base tables too.
	views, err := p.ViewNames(ctx, schema)
	if err != nil {
		return nil, err
	}

	isView := make(map[string]bool, len(views))
	for _, v := range views {
		isView[v] = true
	}

	kept := tables[:0]

	for _, t := range tables {
		if !isView[t] {
			kept = append(kept, t)
		}
	}

	return kept, nil
}

func (p *PostgresIntrospector) ViewNames(ctx context.Context, schema string) ([]string, error) {
	return collectStrings(p.q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.views
		WHERE table_schema = $1
		ORDER BY table_name`, schema))
}

func (p *PostgresIntrospector) Columns(ctx context.Context, schema, relation string) ([]Column, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT
			col.column_name,
			col.data_type,
			col.is_nullable,
			col.column_default,
			col_description(c.oid, col.ordinal_position::int) AS comment
		FROM information_schema.columns col
		LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = col.table_schema
		LEFT JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = col.table_name
		WHERE col.table_schema = $1 AND col.table_name = $2
		ORDER BY col.ordinal_position`, schema, relation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column

	for rows.Next() {
		var (
			col                   Column
			isNullable            string
			defaultValue, comment sql.NullString
		)

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &defaultValue, &comment); err != nil {
			return nil, err
		}

		col.DataType = lowerType(col.DataType)
		col.Nullable = isNullable == "YES"
		col.Default = nullableString(defaultValue)
		col.Comment = nullableString(comment)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchRelation, schema, relation)
	}

	return columns, nil
}

func (p *PostgresIntrospector) ViewDefinition(ctx context.Context, schema, view string) (string, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT view_definition
		FROM information_schema.views
		WHERE table_schema = $1 AND table_name = $2`, schema, view)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var definition sql.NullString

	if rows.Next() {
		if err := rows.Scan(&definition); err != nil {
			return "", err
		}
	}

	return definition.String, rows.Err()
}
