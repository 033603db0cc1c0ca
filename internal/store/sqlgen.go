package store

import (
	"fmt"
	"strings"

	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/meta"
)

// sqlgen translates a DAL query AST to parameterized SQLite SQL. Every
// relationship hop on a dotted path becomes a LEFT JOIN on the referenced
// type's table; a path reuses the join chain of its prefix, so "owner.name"
// and "owner.email" share one join. Values are always parameterized, never
// interpolated.

// compiledSQL is the output of Build: SQL text plus its parameters, and the
// select list in result-column order for row scanning.
type compiledSQL struct {
	text    string
	params  []any
	selects []boundSelect
}

// boundSelect pairs a select expression with its resolved terminal field.
type boundSelect struct {
	expr  dal.SelectExpr
	field *meta.Field
}

type sqlBuilder struct {
	prov meta.Provider
	base *meta.Type

	joins         []string          // rendered LEFT JOIN clauses, in order
	aliasByPrefix map[string]string // dotted path prefix -> table alias
}

// buildSQL compiles a DAL query AST to SQL for the type tables.
func buildSQL(prov meta.Provider, q *dal.Query) (*compiledSQL, error) {
	base, err := prov.Type(q.From)
	if err != nil {
		return nil, err
	}
	b := &sqlBuilder{prov: prov, base: base, aliasByPrefix: map[string]string{"": "t0"}}

	out := &compiledSQL{}
	var sb strings.Builder

	sb.WriteString("SELECT ")
	cols := make([]string, 0, len(q.Select))
	for _, s := range q.Select {
		expr, field, err := b.column(s.Path)
		if err != nil {
			return nil, err
		}
		if s.Func != "" {
			expr = fmt.Sprintf("%s(%s)", s.Func, expr)
		}
		cols = append(cols, expr)
		out.selects = append(out.selects, boundSelect{expr: s, field: field})
	}
	sb.WriteString(strings.Join(cols, ", "))

	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(base.Table))
	sb.WriteString(" AS t0")

	// WHERE is built before the join clauses are emitted, so restrictions on
	// unselected paths still register their joins
	var conds []string
	for _, r := range q.Where {
		expr, _, err := b.column(r.Path)
		if err != nil {
			return nil, err
		}
		cond, param, hasParam := renderCondition(expr, r)
		conds = append(conds, cond)
		if hasParam {
			out.params = append(out.params, param)
		}
	}

	var groupExprs []string
	for _, g := range q.GroupBy {
		expr, _, err := b.column(g)
		if err != nil {
			return nil, err
		}
		groupExprs = append(groupExprs, expr)
	}

	var orderTerms []string
	for _, o := range q.OrderBy {
		expr, _, err := b.column(o.Path)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		orderTerms = append(orderTerms, expr+" "+dir)
	}

	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if len(groupExprs) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupExprs, ", "))
	}

	// deterministic row order: an unordered query sorts by base id, an
	// unordered grouped query by its group keys
	if len(orderTerms) == 0 {
		if len(groupExprs) > 0 {
			for _, g := range groupExprs {
				orderTerms = append(orderTerms, g+" ASC")
			}
		} else {
			orderTerms = append(orderTerms, `t0."id" ASC`)
		}
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(orderTerms, ", "))

	if q.Limit != nil {
		sb.WriteString(" LIMIT ?")
		out.params = append(out.params, *q.Limit)
	}
	if q.Offset != nil {
		if q.Limit == nil {
			// SQLite requires LIMIT before OFFSET
			sb.WriteString(" LIMIT -1")
		}
		sb.WriteString(" OFFSET ?")
		out.params = append(out.params, *q.Offset)
	}

	out.text = sb.String()
	return out, nil
}

// column resolves a dotted path to a table-qualified column expression,
// registering the LEFT JOINs for each relationship hop.
func (b *sqlBuilder) column(path string) (string, *meta.Field, error) {
	segments := strings.Split(path, ".")
	t := b.base
	prefix := ""
	alias := "t0"

	for i, seg := range segments {
		f, err := t.Field(seg)
		if err != nil {
			return "", nil, err
		}
		if i == len(segments)-1 {
			if _, storable := columnDef(f); !storable {
				return "", nil, fmt.Errorf("field %s.%s has no storage column (kind %s)", t.Name, f.Name, meta.KindName(f.Kind))
			}
			return fmt.Sprintf("%s.%s", alias, quoteIdent(f.Name)), f, nil
		}

		ref, ok := f.Kind.(meta.Reference)
		if !ok {
			return "", nil, fmt.Errorf("cannot traverse field %q on type %s: kind %s is not a reference", seg, t.Name, meta.KindName(f.Kind))
		}
		related, err := b.prov.Type(ref.Type)
		if err != nil {
			return "", nil, err
		}

		if prefix == "" {
			prefix = seg
		} else {
			prefix += "." + seg
		}
		next, known := b.aliasByPrefix[prefix]
		if !known {
			next = fmt.Sprintf("t%d", len(b.aliasByPrefix))
			b.aliasByPrefix[prefix] = next
			b.joins = append(b.joins, fmt.Sprintf(`LEFT JOIN %s AS %s ON %s."id" = %s.%s`,
				quoteIdent(related.Table), next, next, alias, quoteIdent(f.Name)))
		}
		alias = next
		t = related
	}
	return "", nil, fmt.Errorf("empty column path")
}

// renderCondition emits one WHERE condition. NULL comparisons use IS / IS
// NOT; everything else is a parameterized comparison.
func renderCondition(expr string, r dal.Restriction) (cond string, param any, hasParam bool) {
	if r.Value == nil {
		switch r.Op {
		case dal.OpNe:
			return expr + " IS NOT NULL", nil, false
		default:
			return expr + " IS NULL", nil, false
		}
	}
	return fmt.Sprintf("%s %s ?", expr, r.Op), r.Value, true
}
