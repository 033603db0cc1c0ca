// Package dal defines the platform query language: an AST for SELECT
// queries over runtime types, a renderer producing canonical query text, and
// a parser reading that text back.
//
// The AST is the only mutation surface. Query augmentation (for example the
// auxiliary grouping columns added by the report planner) happens on the
// node lists here, and the tree is rendered to text exactly once.
package dal

import (
	"fmt"

	"github.com/kommetio/reportgrid/internal/meta"
)

// AggregateFunc is a DAL aggregate function name.
type AggregateFunc string

const (
	Count AggregateFunc = "COUNT"
	Sum   AggregateFunc = "SUM"
	Avg   AggregateFunc = "AVG"
	Min   AggregateFunc = "MIN"
	Max   AggregateFunc = "MAX"
)

// ParseAggregateFunc recognizes an aggregate function name.
func ParseAggregateFunc(s string) (AggregateFunc, bool) {
	switch AggregateFunc(s) {
	case Count, Sum, Avg, Min, Max:
		return AggregateFunc(s), true
	default:
		return "", false
	}
}

// CanAggregate reports whether an aggregate function applies to a field
// kind. Aggregates never apply to relationships or generated fields; SUM and
// AVG additionally require a numeric scalar.
func CanAggregate(fn AggregateFunc, k meta.Kind) bool {
	switch kind := k.(type) {
	case meta.Scalar:
		return scalarAggregable(fn, kind.Base)
	case meta.Formula:
		return scalarAggregable(fn, kind.Result)
	default:
		return false
	}
}

func scalarAggregable(fn AggregateFunc, base meta.ScalarType) bool {
	switch fn {
	case Count:
		return true
	case Sum, Avg:
		return base == meta.NumberType
	case Min, Max:
		switch base {
		case meta.NumberType, meta.DateType, meta.DateTimeType, meta.TextType:
			return true
		}
	}
	return false
}

// SelectExpr is one selected column: a dotted property path, optionally
// wrapped in an aggregate function and optionally aliased.
type SelectExpr struct {
	Path  string
	Func  AggregateFunc // empty for a plain column
	Alias string
}

// Key returns the result-set lookup key for the column: the plain path, or
// "FUNC(path)" for aggregates.
func (s SelectExpr) Key() string {
	if s.Func == "" {
		return s.Path
	}
	return fmt.Sprintf("%s(%s)", s.Func, s.Path)
}

// Operator is a DAL comparison operator.
type Operator string

const (
	OpEq   Operator = "="
	OpNe   Operator = "<>"
	OpGt   Operator = ">"
	OpLt   Operator = "<"
	OpGe   Operator = ">="
	OpLe   Operator = "<="
	OpLike Operator = "LIKE"
)

// Restriction is one WHERE condition. Restrictions on a query combine with
// AND.
//
// Value holds the literal to compare against: string, float64, bool or nil.
type Restriction struct {
	Path  string
	Op    Operator
	Value any
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Path string
	Desc bool
}

// Query is a parsed or constructed DAL query.
type Query struct {
	Select  []SelectExpr
	From    string
	Where   []Restriction
	GroupBy []string
	OrderBy []Ordering
	Limit   *int
	Offset  *int
}

// HasGroupings reports whether the query groups its results.
func (q *Query) HasGroupings() bool { return len(q.GroupBy) > 0 }

// SelectsPath reports whether the select list already contains a plain
// (non-aggregate) column for the path.
func (q *Query) SelectsPath(path string) bool {
	for _, s := range q.Select {
		if s.Func == "" && s.Path == path {
			return true
		}
	}
	return false
}

// GroupsBy reports whether the path is already a GROUP BY term.
func (q *Query) GroupsBy(path string) bool {
	for _, g := range q.GroupBy {
		if g == path {
			return true
		}
	}
	return false
}
