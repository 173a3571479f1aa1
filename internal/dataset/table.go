// Package dataset holds the immutable in-memory tabular snapshot the
// analytics engine operates on. A Table is built once from a parsed
// file and never mutated; all engine stages read it concurrently
// without locking.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Table is an ordered set of named columns over row-major cells.
// Column order and row order are the original file order.
type Table struct {
	columns  []string
	colIndex map[string]int
	cells    [][]Value
}

// New builds a Table from column names and row-major cells. Every row
// must have exactly one cell per column.
func New(columns []string, rows [][]Value) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table must have at least one column")
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("duplicate column name: %q", c)
		}
		idx[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(r), len(columns))
		}
	}
	return &Table{columns: columns, colIndex: idx, cells: rows}, nil
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.cells) }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// Cell returns the cell at (row, column). Unknown columns yield null.
func (t *Table) Cell(row int, column string) Value {
	i, ok := t.colIndex[column]
	if !ok || row < 0 || row >= len(t.cells) {
		return Null()
	}
	return t.cells[row][i]
}

// ColumnValues returns a copy of one column's cells in row order.
func (t *Table) ColumnValues(name string) []Value {
	i, ok := t.colIndex[name]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.cells))
	for r := range t.cells {
		out[r] = t.cells[r][i]
	}
	return out
}

// NumericColumn parses a column as numbers. The mask marks rows whose
// cell parsed successfully; unparseable or null cells are masked out.
func (t *Table) NumericColumn(name string) (vals []float64, ok []bool) {
	i, found := t.colIndex[name]
	if !found {
		return nil, nil
	}
	vals = make([]float64, len(t.cells))
	ok = make([]bool, len(t.cells))
	for r := range t.cells {
		vals[r], ok[r] = t.cells[r][i].AsNumber()
	}
	return vals, ok
}

// TimeColumn parses a column as timestamps with a validity mask.
func (t *Table) TimeColumn(name string) (vals []time.Time, ok []bool) {
	i, found := t.colIndex[name]
	if !found {
		return nil, nil
	}
	vals = make([]time.Time, len(t.cells))
	ok = make([]bool, len(t.cells))
	for r := range t.cells {
		vals[r], ok[r] = t.cells[r][i].AsTime()
	}
	return vals, ok
}

// StringColumn renders a column as display strings with a non-null mask.
func (t *Table) StringColumn(name string) (vals []string, ok []bool) {
	i, found := t.colIndex[name]
	if !found {
		return nil, nil
	}
	vals = make([]string, len(t.cells))
	ok = make([]bool, len(t.cells))
	for r := range t.cells {
		v := t.cells[r][i]
		vals[r] = v.AsString()
		ok[r] = !v.IsNull()
	}
	return vals, ok
}

// RowKey renders a whole row as a single string for duplicate
// detection. Cells are joined with an unlikely separator.
func (t *Table) RowKey(row int) string {
	if row < 0 || row >= len(t.cells) {
		return ""
	}
	parts := make([]string, len(t.columns))
	for i := range t.columns {
		parts[i] = t.cells[row][i].AsString()
	}
	return strings.Join(parts, "\x1f")
}

// PreviewRows returns up to n leading rows as column-name keyed maps,
// with nulls rendered as empty strings.
func (t *Table) PreviewRows(n int) []map[string]any {
	if n > len(t.cells) {
		n = len(t.cells)
	}
	out := make([]map[string]any, 0, n)
	for r := 0; r < n; r++ {
		m := make(map[string]any, len(t.columns))
		for i, c := range t.columns {
			m[c] = t.cells[r][i].AsString()
		}
		out = append(out, m)
	}
	return out
}
