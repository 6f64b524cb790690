// Package dataset holds a raw survey export as an immutable respondent-by-
// question table and provides the column views extraction reads from it.
package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrColumnNotFound is returned when a column is addressed by a name or
// position the table does not have.
var ErrColumnNotFound = errors.New("dataset: column not found")

// Cell is one raw value. Valid is false for a missing answer.
type Cell struct {
	Value string
	Valid bool
}

// Value returns a present cell.
func Value(s string) Cell { return Cell{Value: s, Valid: true} }

// Missing returns an absent cell.
func Missing() Cell { return Cell{} }

// Table is a respondent-by-column grid. Column names are unique; exports
// that repeat a header are disambiguated with ".N" suffixes on load.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]Cell
}

// New builds a table. Every row must have one cell per header entry.
func New(header []string, rows [][]Cell) (*Table, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", name)
		}
		index[name] = i
	}
	copied := make([][]Cell, len(rows))
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("dataset: row %d has %d cells, want %d", i, len(row), len(header))
		}
		copied[i] = slices.Clone(row)
	}
	return &Table{header: slices.Clone(header), index: index, rows: copied}, nil
}

// Header returns the column names in order.
func (t *Table) Header() []string { return slices.Clone(t.header) }

// NumRows returns the number of respondents.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.header) }

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i, nil
}

// Column returns a view of the column at position i.
func (t *Table) Column(i int) (Column, error) {
	if i < 0 || i >= len(t.header) {
		return Column{}, fmt.Errorf("%w: index %d out of range [0, %d)", ErrColumnNotFound, i, len(t.header))
	}
	data := make([]Cell, len(t.rows))
	for r, row := range t.rows {
		data[r] = row[i]
	}
	return Column{Name: t.header[i], Index: i, Data: data}, nil
}

// ColumnByName returns a view of the named column.
func (t *Table) ColumnByName(name string) (Column, error) {
	i, err := t.Index(name)
	if err != nil {
		return Column{}, err
	}
	return t.Column(i)
}

// Window returns the n columns starting at position start.
func (t *Table) Window(start, n int) ([]Column, error) {
	if n < 0 || start < 0 || start+n > len(t.header) {
		return nil, fmt.Errorf("%w: columns [%d, %d) out of range [0, %d)", ErrColumnNotFound, start, start+n, len(t.header))
	}
	cols := make([]Column, 0, n)
	for i := start; i < start+n; i++ {
		c, err := t.Column(i)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Column is an extraction-time view of one table column.
type Column struct {
	Name  string
	Index int
	Data  []Cell
}

// Count returns the number of non-missing cells.
func (c Column) Count() int {
	n := 0
	for _, cell := range c.Data {
		if cell.Valid {
			n++
		}
	}
	return n
}

// Values returns the raw cell values in row order. Missing cells are skipped
// when dropMissing is set and rendered as "" otherwise.
func (c Column) Values(dropMissing bool) []string {
	out := make([]string, 0, len(c.Data))
	for _, cell := range c.Data {
		if !cell.Valid && dropMissing {
			continue
		}
		out = append(out, cell.Value)
	}
	return out
}

// Count is one distinct value and how often it occurs.
type Count struct {
	Value string
	Count int
}

// ValueCounts returns the frequency of every distinct non-missing value, most
// frequent first; ties keep the order of first appearance.
func (c Column) ValueCounts() []Count {
	index := make(map[string]int)
	var out []Count
	for _, cell := range c.Data {
		if !cell.Valid {
			continue
		}
		if i, ok := index[cell.Value]; ok {
			out[i].Count++
			continue
		}
		index[cell.Value] = len(out)
		out = append(out, Count{Value: cell.Value, Count: 1})
	}
	slices.SortStableFunc(out, func(a, b Count) int { return cmp.Compare(b.Count, a.Count) })
	return out
}
