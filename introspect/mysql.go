package introspect

import (
	"context"
	"database/sql"
	"fmt"
)

// MySQLIntrospector serves MySQL, MariaDB and SingleStore. MySQL calls its
// schemas databases; information_schema speaks in TABLE_SCHEMA terms either
// way.
type MySQLIntrospector struct {
	q Querier
}

func (m *MySQLIntrospector) DefaultSchema(ctx context.Context) (string, error) {
	rows, err := m.q.QueryContext(ctx, `SELECT DATABASE()`)
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

func (m *MySQLIntrospector) SchemaNames(ctx context.Context) ([]string, error) {
	schemas, err := collectStrings(m.q.QueryContext(ctx, `
		SELECT SCHEMA_NAME
		FROM information_schema.SCHEMATA
		WHERE SCHEMA_NAME NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY SCHEMA_NAME`))
	if err != nil {
		return nil, err
	}

	defaultSchema, err := m.DefaultSchema(ctx)
	if err != nil {
		return nil, err
	}

	return ensureDefault(schemas, defaultSchema), nil
}

func (m *MySQLIntrospector) TableNames(ctx context.Context, schema string) ([]string, error) {
	return collectStrings(m.q.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, schema))
}

func (m *MySQLIntrospector) ViewNames(ctx context.Context, schema string) ([]string, error) {
	return collectStrings(m.q.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`, schema))
}

func (m *MySQLIntrospector) Columns(ctx context.Context, schema, relation string) ([]Column, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, relation)
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

func (m *MySQLIntrospector) ViewDefinition(ctx context.Context, schema, view string) (string, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`, schema, view)
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
