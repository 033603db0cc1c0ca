package compiler

import (
	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
)

// CountKey is the result-set key of the record-count column.
var CountKey = dal.SelectExpr{Path: meta.IDField, Func: dal.Count}.Key()

// CountJCR derives the counting companion of a query: same base type,
// restrictions and groupings, but selecting only COUNT(id), with orderings
// and the limit/offset window stripped. For an ungrouped query the single
// result value is the total; for a grouped query each result row is one
// group, so the total is the number of rows.
func CountJCR(j *jcr.JCR) *jcr.JCR {
	count := &jcr.JCR{
		BaseTypeID:   j.BaseTypeID,
		BaseTypeName: j.BaseTypeName,
		Properties:   []jcr.Property{{Name: meta.IDField, AggregateFunction: dal.Count}},
		Groupings:    append([]jcr.Grouping(nil), j.Groupings...),
		Restrictions: append([]jcr.Restriction(nil), j.Restrictions...),
	}
	return count
}

// CompileCount compiles the counting companion of a JCR.
func (c *Compiler) CompileCount(caller *auth.Data, j *jcr.JCR) (*Result, error) {
	return c.Compile(caller, CountJCR(j))
}
