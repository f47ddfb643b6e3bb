package notesql

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// Table is the tabular value cells and meta-commands return: named columns
// plus zero or more rows. A zero-row Table still carries its column names.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable creates a table with the given column names and no rows
func NewTable(columns ...string) *Table {
	return &Table{
		Columns: columns,
		Rows:    [][]any{},
	}
}

// AppendRow adds one row. Short rows are padded with nil to the column count.
func (t *Table) AppendRow(values ...any) {
	for len(values) < len(t.Columns) {
		values = append(values, nil)
	}

	t.Rows = append(t.Rows, values[:len(t.Columns)])
}

// IsScalar reports whether the table is a single value (one row, one column)
func (t *Table) IsScalar() bool {
	return len(t.Rows) == 1 && len(t.Columns) == 1 && len(t.Rows[0]) == 1
}

// ScalarValue returns the single cell of a 1x1 table
func (t *Table) ScalarValue() (any, bool) {
	if !t.IsScalar() {
		return nil, false
	}

	return t.Rows[0][0], true
}

// Render writes the table as aligned text with a header separator
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = displayWidth(col)
	}

	cells := make([][]string, len(t.Rows))
	for ri, row := range t.Rows {
		cells[ri] = make([]string, len(t.Columns))
		for ci := range t.Columns {
			var v any
			if ci < len(row) {
				v = row[ci]
			}

			s := FormatValue(v)
			cells[ri][ci] = s

			if dw := displayWidth(s); dw > widths[ci] {
				widths[ci] = dw
			}
		}
	}

	if err := renderRow(w, t.Columns, widths); err != nil {
		return err
	}

	seps := make([]string, len(t.Columns))
	for i, cw := range widths {
		seps[i] = strings.Repeat("-", cw)
	}

	if err := renderRow(w, seps, widths); err != nil {
		return err
	}

	for _, row := range cells {
		if err := renderRow(w, row, widths); err != nil {
			return err
		}
	}

	return nil
}

func renderRow(w io.Writer, cells []string, widths []int) error {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := widths[i] - displayWidth(cell)
		if pad < 0 {
			pad = 0
		}

		parts[i] = cell + strings.Repeat(" ", pad)
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))

	return err
}

// displayWidth measures terminal columns, counting East Asian wide and
// fullwidth runes as two cells.
func displayWidth(s string) int {
	total := 0

	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}

	return total
}

// FormatValue formats a cell value as a string
func FormatValue(val any) string {
	if val == nil {
		return "NULL"
	}

	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return fmt.Sprintf("%t", v)
	case map[string]any:
		// Format JSON objects
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	case []any:
		// Format JSON arrays
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
