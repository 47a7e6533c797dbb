package dataset

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
)

/*
Row filters are written in a small query language with the following grammar:

Query       := Expr
Expr        := AndExpr ( "OR" AndExpr )*
AndExpr     := Condition ( "AND" Condition )*
Condition   := "NOT"? Comparison | "(" Expr ")"
Comparison  := <column> Op Value
Op          := "CONTAINS" | "<" | ">" | "="
Value       := <string> | <number>

A string value selects lexicographic comparison on the raw cell; a numeric
value selects numeric comparison and only matches numeric columns.
*/

var filterParser = participle.MustBuild[QueryExpr](
	participle.Unquote("String"),
	participle.Union[Value](StringValue{}, NumberValue{}),
)

func ParseFilter(query string) (Filter, error) {
	q, err := filterParser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("error parsing filter '%s': %w", query, err)
	}

	filter, err := q.ToFilter()
	if err != nil {
		return nil, fmt.Errorf("error converting filter '%s': %w", query, err)
	}

	return filter, nil
}

type QueryExpr struct {
	Expr *Expr `@@`
}

func (q *QueryExpr) ToFilter() (Filter, error) {
	return q.Expr.ToFilter()
}

type Expr struct {
	Ors []*AndExpr `@@ ( "OR" @@ )*`
}

func (e *Expr) ToFilter() (Filter, error) {
	if len(e.Ors) == 0 {
		return nil, fmt.Errorf("empty OR expression")
	}

	if len(e.Ors) == 1 {
		return e.Ors[0].ToFilter()
	}

	var filters []Filter
	for _, cond := range e.Ors {
		f, err := cond.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return &OrFilter{filters: filters}, nil
}

type AndExpr struct {
	Ands []*Condition `@@ ( "AND" @@ )*`
}

func (o *AndExpr) ToFilter() (Filter, error) {
	if len(o.Ands) == 0 {
		return nil, fmt.Errorf("empty AND expression")
	}

	if len(o.Ands) == 1 {
		return o.Ands[0].ToFilter()
	}

	var filters []Filter
	for _, cond := range o.Ands {
		f, err := cond.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return &AndFilter{filters: filters}, nil
}

type Condition struct {
	Not        bool            `@"NOT"?`
	Comparison *ComparisonExpr ` @@`
	SubExpr    *Expr           `| "(" @@ ")" `
}

func (c *Condition) ToFilter() (Filter, error) {
	var filter Filter
	var err error
	if c.Comparison != nil {
		filter, err = c.Comparison.ToFilter()
	} else if c.SubExpr != nil {
		filter, err = c.SubExpr.ToFilter()
	}

	if err != nil {
		return nil, err
	}

	if c.Not {
		filter = &NotFilter{filter: filter}
	}

	return filter, nil
}

type ComparisonExpr struct {
	Column string `@Ident`
	Op     string `@("CONTAINS" | "<" | ">" | "=" )`
	Value  Value  `@@`
}

func (c *ComparisonExpr) ToFilter() (Filter, error) {
	if n, ok := c.Value.(NumberValue); ok {
		switch c.Op {
		case "<":
			return &NumLtFilter{column: c.Column, value: n.Value}, nil
		case ">":
			return &NumGtFilter{column: c.Column, value: n.Value}, nil
		case "=":
			return &NumEqFilter{column: c.Column, value: n.Value}, nil
		default:
			return nil, fmt.Errorf("invalid operator %s used with a numeric value", c.Op)
		}
	}

	s, ok := c.Value.(StringValue)
	if !ok {
		return nil, fmt.Errorf("comparison value must be a string or a number")
	}

	switch c.Op {
	case "CONTAINS":
		return &SubstringFilter{column: c.Column, substr: s.Value}, nil
	case "<":
		return &StringLtFilter{column: c.Column, value: s.Value}, nil
	case ">":
		return &StringGtFilter{column: c.Column, value: s.Value}, nil
	case "=":
		return &StringEqFilter{column: c.Column, value: s.Value}, nil
	default:
		return nil, fmt.Errorf("invalid operator %s used with a string value", c.Op)
	}
}

type Value interface{ value() }

type StringValue struct {
	Value string `@String`
}

func (s StringValue) value() {}

type NumberValue struct {
	Value float64 `@(Float | Int)`
}

func (n NumberValue) value() {}
