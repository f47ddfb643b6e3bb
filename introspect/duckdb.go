package introspect

import (
	"context"
	"database/sql"
	"fmt"
)

// DuckDBIntrospector reads DuckDB's information_schema, which spans every
// attached database, so listings pin the current catalog.
type DuckDBIntrospector struct {
	q Querier
}

func (d *DuckDBIntrospector) DefaultSchema(ctx context.Context) (string, error) {
	rows, err := d.q.QueryContext(ctx, `SELECT current_schema()`)
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

func (d *DuckDBIntrospector) SchemaNames(ctx context.Context) ([]string, error) {
	schemas, err := collectStrings(d.q.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE catalog_name = current_database()
		  AND schema_name NOT IN ('information_schema', 'pg_catalog')
		ORDER BY schema_name`))
	if err != nil {
		return nil, err
	}

	defaultSchema, err := d.DefaultSchema(ctx)
	if err != nil {
		return nil, err
	}

	return ensureDefault(schemas, defaultSchema), nil
}

func (d *DuckDBIntrospector) TableNames(ctx context.Context, schema string) ([]string, error) {
	return collectStrings(d.q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema))
}

func (d *DuckDBIntrospector) ViewNames(ctx context.Context, schema string) ([]string, error) {
	return collectStrings(d.q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema = ? AND table_type = 'VIEW'
		ORDER BY table_name`, schema))
}

func (d *DuckDBIntrospector) Columns(ctx context.Context, schema, relation string) ([]Column, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_catalog = current_database()
		  AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, relation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column

	for rows.Next() {
		var (
			col          Column
			isNullable   string
			defaultValue sql.NullString
		)

		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &defaultValue); err != nil {
			return nil, err
		}

		col.DataType = lowerType(col.DataType)
		col.Nullable = isNullable == "YES"
		col.Default = nullableString(defaultValue)

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

func (d *DuckDBIntrospector) ViewDefinition(ctx context.Context, schema, view string) (string, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT sql
		FROM duckdb_views()
		WHERE NOT internal AND schema_name = ? AND view_name = ?`, schema, view)
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
