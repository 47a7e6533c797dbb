package dataset

import (
	"strings"
)

// Filter is a predicate over one row of a table. Filters referencing a column
// the table does not have never match.
type Filter interface {
	Matches(t *Table, row int) bool
}

// Apply returns a new table holding only the rows the filter matches.
func Apply(t *Table, f Filter) *Table {
	var keep []int
	for i := 0; i < t.NumRows(); i++ {
		if f.Matches(t, i) {
			keep = append(keep, i)
		}
	}
	return t.Select(keep)
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Matches(t *Table, row int) bool {
	for _, filter := range f.filters {
		if !filter.Matches(t, row) {
			return false
		}
	}
	return true
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Matches(t *Table, row int) bool {
	for _, filter := range f.filters {
		if filter.Matches(t, row) {
			return true
		}
	}
	return false
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Matches(t *Table, row int) bool {
	return !f.filter.Matches(t, row)
}

func cell(t *Table, column string, row int) (string, bool) {
	c, ok := t.Column(column)
	if !ok || row >= len(c.Values) || c.Missing[row] {
		return "", false
	}
	return c.Values[row], true
}

func numericCell(t *Table, column string, row int) (float64, bool) {
	c, ok := t.Column(column)
	if !ok || c.Type != Numeric || row >= len(c.Floats) || c.Missing[row] {
		return 0, false
	}
	return c.Floats[row], true
}

type SubstringFilter struct {
	column string
	substr string
}

func (f *SubstringFilter) Matches(t *Table, row int) bool {
	v, ok := cell(t, f.column, row)
	return ok && strings.Contains(v, f.substr)
}

type StringEqFilter struct {
	column string
	value  string
}

func (f *StringEqFilter) Matches(t *Table, row int) bool {
	v, ok := cell(t, f.column, row)
	return ok && v == f.value
}

type StringLtFilter struct {
	column string
	value  string
}

func (f *StringLtFilter) Matches(t *Table, row int) bool {
	v, ok := cell(t, f.column, row)
	return ok && v < f.value
}

type StringGtFilter struct {
	column string
	value  string
}

func (f *StringGtFilter) Matches(t *Table, row int) bool {
	v, ok := cell(t, f.column, row)
	return ok && v > f.value
}

type NumEqFilter struct {
	column string
	value  float64
}

func (f *NumEqFilter) Matches(t *Table, row int) bool {
	v, ok := numericCell(t, f.column, row)
	return ok && v == f.value
}

type NumLtFilter struct {
	column string
	value  float64
}

func (f *NumLtFilter) Matches(t *Table, row int) bool {
	v, ok := numericCell(t, f.column, row)
	return ok && v < f.value
}

type NumGtFilter struct {
	column string
	value  float64
}

func (f *NumGtFilter) Matches(t *Table, row int) bool {
	v, ok := numericCell(t, f.column, row)
	return ok && v > f.value
}
