package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Loader reads CSV survey exports into a Table.
type Loader struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune
	// MissingValues lists cell texts, besides the empty string, that mark a
	// missing answer (e.g. "NA").
	MissingValues []string
	// TrimSpace trims surrounding whitespace from every cell before the
	// missing-value check.
	TrimSpace bool
}

// ParseFile reads the CSV file at path using l.
func (l Loader) ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	t, err := l.ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// ParseReader reads CSV from r. The first record is the header.
func (l Loader) ParseReader(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	if l.Comma != 0 {
		cr.Comma = l.Comma
	}
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	missing := make(map[string]bool, len(l.MissingValues)+1)
	missing[""] = true
	for _, v := range l.MissingValues {
		missing[v] = true
	}

	var rows [][]Cell
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read row %d: %w", len(rows)+1, err)
		}
		row := make([]Cell, len(record))
		for i, v := range record {
			if l.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if missing[v] {
				row[i] = Missing()
				continue
			}
			row[i] = Value(v)
		}
		rows = append(rows, row)
	}
	return New(DedupeHeader(header), rows)
}

// DedupeHeader makes repeated column names unique by suffixing the second and
// later occurrences with ".1", ".2", ..., skipping suffixes already taken.
// Multi-select exports commonly repeat a header such as "Other" once per
// sub-column.
func DedupeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, name := range header {
		taken[name] = true
	}
	seen := make(map[string]int, len(header))
	for i, name := range header {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		candidate := name + "." + strconv.Itoa(n)
		for taken[candidate] {
			n++
			candidate = name + "." + strconv.Itoa(n)
		}
		seen[name] = n + 1
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}
