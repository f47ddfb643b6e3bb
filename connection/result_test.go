package connection

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func TestResultShapes(t *testing.T) {
	t.Run("rows shape", func(t *testing.T) {
		r := &Result{
			Columns:  []string{"id", "name"},
			Rows:     [][]any{{int64(1), "alpha"}, {int64(2), "beta"}},
			RowCount: -1,
			HasRows:  true,
		}

		assert.True(t, r.Reportable())
		assert.False(t, r.IsScalar())

		table := r.AsTable()
		assert.Equal(t, []string{"id", "name"}, table.Columns)
		assert.Equal(t, 2, len(table.Rows))
	})

	t.Run("single cell collapses to scalar", func(t *testing.T) {
		r := &Result{
			Columns:  []string{"count"},
			Rows:     [][]any{{int64(42)}},
			RowCount: -1,
			HasRows:  true,
		}

		assert.True(t, r.IsScalar())

		v, ok := r.Scalar().(int64)
		assert.True(t, ok)
		assert.Equal(t, int64(42), v)
	})

	t.Run("empty result set is not scalar", func(t *testing.T) {
		r := &Result{
			Columns:  []string{"id"},
			RowCount: -1,
			HasRows:  true,
		}

		assert.True(t, r.Reportable())
		assert.False(t, r.IsScalar())
	})

	t.Run("count shape", func(t *testing.T) {
		r := &Result{RowCount: 3}

		assert.True(t, r.Reportable())
		assert.True(t, r.IsScalar())

		v, ok := r.Scalar().(int64)
		assert.True(t, ok)
		assert.Equal(t, int64(3), v)
	})

	t.Run("silent shape", func(t *testing.T) {
		r := &Result{RowCount: -1}

		assert.False(t, r.Reportable())
		assert.False(t, r.IsScalar())
	})
}

func TestConvertValue(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Equal(t, nil, convertValue(nil, "TEXT"))
	})

	t.Run("json object bytes are decoded", func(t *testing.T) {
		got := convertValue([]byte(`{"a": 1}`), "JSONB")
		m, ok := got.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, float64(1), m["a"].(float64))
	})

	t.Run("json array bytes are decoded", func(t *testing.T) {
		got := convertValue([]byte(`[1, 2]`), "JSON")
		arr, ok := got.([]any)
		assert.True(t, ok)
		assert.Equal(t, 2, len(arr))
	})

	t.Run("plain bytes become string", func(t *testing.T) {
		assert.Equal(t, "hello", convertValue([]byte("hello"), "TEXT").(string))
	})

	t.Run("numeric bytes become decimal", func(t *testing.T) {
		got := convertValue([]byte("12.34"), "NUMERIC")
		d, ok := got.(decimal.Decimal)
		assert.True(t, ok)
		assert.Equal(t, "12.34", d.String())
	})

	t.Run("decimal string becomes decimal", func(t *testing.T) {
		got := convertValue("99.95", "DECIMAL")
		d, ok := got.(decimal.Decimal)
		assert.True(t, ok)
		assert.Equal(t, "99.95", d.String())
	})

	t.Run("malformed numeric falls back to string", func(t *testing.T) {
		assert.Equal(t, "NaN-ish", convertValue([]byte("NaN-ish"), "NUMERIC").(string))
	})

	t.Run("integers pass through", func(t *testing.T) {
		assert.Equal(t, int64(7), convertValue(int64(7), "INTEGER").(int64))
	})
}
