package connection

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	notesql "github.com/shibukawa/notesql"
)

// Result holds the outcome of a single SQL statement in exactly one of
// three shapes:
//
//   - a projected result set (Columns and Rows populated, HasRows true),
//   - an affected-row count (RowCount >= 0, HasRows false), or
//   - nothing at all (RowCount -1, HasRows false), as with CREATE TABLE.
type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int64
	HasRows  bool

	// Truncated is set when the row limit cut the result set short.
	Truncated bool
}

// Reportable reports whether the statement produced anything worth
// showing to the user.
func (r *Result) Reportable() bool {
	return r.HasRows || r.RowCount != -1
}

// IsScalar reports whether the result collapses to a single value
// without losing information: either a bare row count, or a result set
// of exactly one row and one column.
func (r *Result) IsScalar() bool {
	if !r.Reportable() {
		return false
	}
	if !r.HasRows {
		return true
	}
	return len(r.Rows) == 1 && len(r.Rows[0]) == 1
}

// Scalar returns the single value. Call only when IsScalar is true.
func (r *Result) Scalar() any {
	if r.HasRows {
		return r.Rows[0][0]
	}
	return r.RowCount
}

// AsTable converts a projected result set into a renderable table.
// Call only when HasRows is true.
func (r *Result) AsTable() *notesql.Table {
	t := notesql.NewTable(r.Columns...)
	for _, row := range r.Rows {
		t.AppendRow(row...)
	}
	return t
}

// ReadRows drains rows into a Result, converting driver values as it
// goes. maxRows caps the number of rows kept (0 means unlimited); the
// cursor is always consumed up to the cap and closed by the caller.
//
// Some drivers (ClickHouse among them) claim a result set for DML
// statements yet report zero columns. Those collapse to the silent
// shape rather than an empty table.
func ReadRows(rows *sql.Rows, maxRows int) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return &Result{RowCount: -1}, nil
	}

	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	result := &Result{
		Columns:  columns,
		RowCount: -1,
		HasRows:  true,
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make([]any, len(columns))
		for i := range columns {
			row[i] = convertValue(values[i], dbTypes[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FromExec builds a count-shape Result from an exec outcome. Drivers
// that cannot report affected rows yield the silent shape.
func FromExec(res sql.Result) *Result {
	n, err := res.RowsAffected()
	if err != nil {
		return &Result{RowCount: -1}
	}
	return &Result{RowCount: n}
}

// convertValue normalizes driver values for display and templating.
// Byte slices carrying JSON objects or arrays are decoded, NUMERIC and
// DECIMAL columns become decimal.Decimal, and everything else passes
// through unchanged.
func convertValue(val any, dbType string) any {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case []byte:
		s := string(v)
		if isDecimalType(dbType) {
			if d, err := decimal.NewFromString(s); err == nil {
				return d
			}
		}
		if (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
			(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
			var jsonVal any
			if err := json.Unmarshal(v, &jsonVal); err == nil {
				return jsonVal
			}
		}
		return s
	case string:
		if isDecimalType(dbType) {
			if d, err := decimal.NewFromString(v); err == nil {
				return d
			}
		}
		return v
	case time.Time:
		return v
	default:
		return v
	}
}

func isDecimalType(dbType string) bool {
	switch strings.ToUpper(dbType) {
	case "NUMERIC", "DECIMAL":
		return true
	}
	return false
}
