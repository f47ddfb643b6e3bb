package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteIntrospector reads sqlite_master and table_info. SQLite's schemas
// are its attached databases; "main" always exists.
type SQLiteIntrospector struct {
	q Querier
}

func (s *SQLiteIntrospector) DefaultSchema(ctx context.Context) (string, error) {
	return "main", nil
}

func (s *SQLiteIntrospector) SchemaNames(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `PRAGMA database_list`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string

	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)

		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}

		schemas = append(schemas, name)
	}

	return schemas, rows.Err()
}

func (s *SQLiteIntrospector) TableNames(ctx context.Context, schema string) ([]string, error) {
	query := fmt.Sprintf(`SELECT name FROM %s.sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%%' ORDER BY name`,
		quoteIdent(schemaOrMain(schema)))

	return collectStrings(s.q.QueryContext(ctx, query))
}

func (s *SQLiteIntrospector) ViewNames(ctx context.Context, schema string) ([]string, error) {
	query := fmt.Sprintf(`SELECT name FROM %s.sqlite_master WHERE type='view' ORDER BY name`,
		quoteIdent(schemaOrMain(schema)))

	return collectStrings(s.q.QueryContext(ctx, query))
}

func (s *SQLiteIntrospector) Columns(ctx context.Context, schema, relation string) ([]Column, error) {
	// PRAGMA arguments cannot be bound, only interpolated.
	query := fmt.Sprintf(`PRAGMA %s.table_info(%s)`, quoteIdent(schemaOrMain(schema)), quoteIdent(relation))

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			defaultValue     sql.NullString
		)

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		columns = append(columns, Column{
			Name:     name,
			DataType: lowerType(dataType),
			Nullable: notNull == 0,
			Default:  nullableString(defaultValue),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchRelation, relation)
	}

	return columns, nil
}

func (s *SQLiteIntrospector) ViewDefinition(ctx context.Context, schema, view string) (string, error) {
	query := fmt.Sprintf(`SELECT sql FROM %s.sqlite_master WHERE type='view' AND name = ?`,
		quoteIdent(schemaOrMain(schema)))

	rows, err := s.q.QueryContext(ctx, query, view)
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

func schemaOrMain(schema string) string {
	if schema == "" {
		return "main"
	}

	return schema
}

// quoteIdent double-quotes an identifier for interpolation into PRAGMA
// and sqlite_master queries, which cannot take bind parameters there.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
