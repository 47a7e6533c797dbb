package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyInput indicates the source contained a header but no data rows,
	// or no content at all.
	ErrEmptyInput = errors.New("dataset contains no data rows")

	// ErrMalformedInput indicates the source could not be parsed into a table
	// with a consistent number of fields per row.
	ErrMalformedInput = errors.New("malformed input")
)

type ColumnType string

const (
	Numeric ColumnType = "numeric"
	Text    ColumnType = "text"
)

// Column holds one named column of a table. Values keeps the raw cell text for
// every row. For numeric columns Floats holds the parsed values, with NaN in
// missing positions.
type Column struct {
	Name    string
	Type    ColumnType
	Values  []string
	Missing []bool
	Floats  []float64
}

func (c *Column) MissingCount() int {
	count := 0
	for _, m := range c.Missing {
		if m {
			count++
		}
	}
	return count
}

// NonMissingFloats returns the parsed values of a numeric column with missing
// positions removed.
func (c *Column) NonMissingFloats() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for i, v := range c.Floats {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is an ordered collection of equal-length columns. Tables are built once
// by a loader and treated as immutable afterwards.
type Table struct {
	columns []Column
	index   map[string]int
}

func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

func (t *Table) NumCols() int {
	return len(t.columns)
}

func (t *Table) Columns() []Column {
	return t.columns
}

func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"null": {},
	"nan":  {},
}

func isMissing(cell string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(cell))]
	return ok
}

// fromRows builds a table from a header and row-major records, inferring a type
// for each column. A column is numeric iff it has at least one non-missing cell
// and every non-missing cell parses as a float.
func fromRows(header []string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformedInput, i+1, len(row), len(header))
		}
	}

	t := &Table{index: make(map[string]int, len(header))}
	for col, name := range header {
		c := Column{
			Name:    strings.TrimSpace(name),
			Values:  make([]string, len(rows)),
			Missing: make([]bool, len(rows)),
		}

		floats := make([]float64, len(rows))
		numeric := true
		nonMissing := false
		for i, row := range rows {
			cell := strings.TrimSpace(row[col])
			c.Values[i] = cell
			if isMissing(cell) {
				c.Missing[i] = true
				floats[i] = math.NaN()
				continue
			}
			nonMissing = true
			if !numeric {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric = false
				continue
			}
			floats[i] = v
		}

		if numeric && nonMissing {
			c.Type = Numeric
			c.Floats = floats
		} else {
			c.Type = Text
		}

		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}

	return t, nil
}

// Select returns a new table containing only the rows whose index is in keep,
// in order. Column types are preserved.
func (t *Table) Select(keep []int) *Table {
	out := &Table{index: make(map[string]int, len(t.columns))}
	for _, c := range t.columns {
		nc := Column{
			Name:    c.Name,
			Type:    c.Type,
			Values:  make([]string, 0, len(keep)),
			Missing: make([]bool, 0, len(keep)),
		}
		if c.Type == Numeric {
			nc.Floats = make([]float64, 0, len(keep))
		}
		for _, i := range keep {
			nc.Values = append(nc.Values, c.Values[i])
			nc.Missing = append(nc.Missing, c.Missing[i])
			if c.Type == Numeric {
				nc.Floats = append(nc.Floats, c.Floats[i])
			}
		}
		out.index[nc.Name] = len(out.columns)
		out.columns = append(out.columns, nc)
	}
	return out
}
