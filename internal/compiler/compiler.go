// Package compiler translates between the two query representations: JCR
// (the structured specification exchanged with builders) and DAL (the
// platform query text). The forward direction also plans report output
// columns, including the auxiliary columns added for relationship groupings.
package compiler

import (
	"fmt"
	"strings"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/i18n"
	"github.com/kommetio/reportgrid/internal/jcr"
	"github.com/kommetio/reportgrid/internal/meta"
)

// Permission error keys.
const (
	KeyTypeNotReadable  = "auth.type.not.readable"
	KeyFieldNotReadable = "auth.field.not.readable"
)

// ValidationError reports JCR validation failures as i18n error keys.
type ValidationError struct {
	Keys []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Keys, ", ")
}

// PermissionError reports a reference to a type or field the caller may not
// read. Compilation fails outright rather than silently narrowing the query.
type PermissionError struct {
	Key     string // KeyTypeNotReadable or KeyFieldNotReadable
	Subject string // "Account" or "Account.revenue"
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Subject)
}

// Column describes one output column of a compiled report query.
type Column struct {
	Path      string
	Label     string
	Aggregate dal.AggregateFunc // empty for plain columns
	Alias     string
	// Aux marks columns added by the planner rather than requested as
	// properties: grouping columns not in the select list, and the default
	// field companion added for relationship groupings.
	Aux bool
}

// Key returns the result-set lookup key for the column.
func (c Column) Key() string {
	return dal.SelectExpr{Path: c.Path, Func: c.Aggregate}.Key()
}

// Result is a compiled query: the AST, its rendered text, and the planned
// output columns in display order (properties first, planner additions after).
type Result struct {
	Query    *dal.Query
	Text     string
	BaseType *meta.Type
	Columns  []Column
	Grouped  bool
}

// Compiler compiles JCRs against a schema provider.
type Compiler struct {
	prov  meta.Provider
	dicts *i18n.Store
}

func New(prov meta.Provider, dicts *i18n.Store) *Compiler {
	if dicts == nil {
		dicts = i18n.NewStore()
	}
	return &Compiler{prov: prov, dicts: dicts}
}

// Compile validates the JCR and builds the DAL query for it. The caller's
// permissions gate every referenced type and field; column labels are
// localized for the caller's locale.
func (c *Compiler) Compile(caller *auth.Data, j *jcr.JCR) (*Result, error) {
	if keys := jcr.Validate(j, c.prov); len(keys) > 0 {
		return nil, &ValidationError{Keys: keys}
	}

	base, err := j.BaseType(c.prov)
	if err != nil {
		return nil, err
	}
	if !caller.CanReadType(base) {
		return nil, &PermissionError{Key: KeyTypeNotReadable, Subject: base.Name}
	}

	dict := c.dictFor(caller)
	q := &dal.Query{From: base.Name}
	var cols []Column

	for _, prop := range j.Properties {
		path, err := prop.Path(c.prov, base)
		if err != nil {
			return nil, err
		}
		field, err := c.checkPathReadable(caller, base, path)
		if err != nil {
			return nil, err
		}
		q.Select = append(q.Select, dal.SelectExpr{Path: path, Func: prop.AggregateFunction, Alias: prop.Alias})
		cols = append(cols, Column{
			Path:      path,
			Label:     labelFor(prop.Alias, field, dict),
			Aggregate: prop.AggregateFunction,
			Alias:     prop.Alias,
		})
	}

	for _, g := range j.Groupings {
		path, err := g.Path(c.prov, base)
		if err != nil {
			return nil, err
		}
		field, err := c.checkPathReadable(caller, base, path)
		if err != nil {
			return nil, err
		}

		if !q.GroupsBy(path) {
			q.GroupBy = append(q.GroupBy, path)
		}
		// grouping columns are always part of the result set
		if !q.SelectsPath(path) {
			q.Select = append(q.Select, dal.SelectExpr{Path: path, Alias: g.Alias})
			cols = append(cols, Column{
				Path:  path,
				Label: labelFor(g.Alias, field, dict),
				Alias: g.Alias,
				Aux:   true,
			})
		}

		auxCols, err := c.relationshipGrouping(caller, q, base, path, field, dict)
		if err != nil {
			return nil, err
		}
		cols = append(cols, auxCols...)
	}

	for _, r := range j.Restrictions {
		path, err := r.Path(c.prov, base)
		if err != nil {
			return nil, err
		}
		if _, err := c.checkPathReadable(caller, base, path); err != nil {
			return nil, err
		}
		op, err := parseOperator(r.Operator)
		if err != nil {
			return nil, err
		}
		q.Where = append(q.Where, dal.Restriction{Path: path, Op: op, Value: r.Value})
	}

	for _, o := range j.Orderings {
		path, err := o.Path(c.prov, base)
		if err != nil {
			return nil, err
		}
		if _, err := c.checkPathReadable(caller, base, path); err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, dal.Ordering{Path: path, Desc: strings.EqualFold(o.SortDirection, "DESC")})
	}

	q.Limit = cloneInt(j.Limit)
	q.Offset = cloneInt(j.Offset)

	text, err := q.Render()
	if err != nil {
		return nil, err
	}
	return &Result{Query: q, Text: text, BaseType: base, Columns: cols, Grouped: q.HasGroupings()}, nil
}

// relationshipGrouping applies the auxiliary column rule: grouping on a
// reference field groups records by the related record's id, which is opaque
// to a reader, so the related type's default field is selected and grouped
// alongside it. Adding the default field to GROUP BY does not change the
// groups (it is functionally dependent on the reference). The addition is
// one-directional: deriving a JCR back from the query keeps the column.
func (c *Compiler) relationshipGrouping(caller *auth.Data, q *dal.Query, base *meta.Type, path string, field *meta.Field, dict *i18n.Dictionary) ([]Column, error) {
	ref, ok := field.Kind.(meta.Reference)
	if !ok {
		return nil, nil
	}
	related, err := c.prov.Type(ref.Type)
	if err != nil {
		return nil, err
	}
	if related.DefaultField == meta.IDField {
		// the reference value already is the id
		return nil, nil
	}

	auxPath := path + "." + related.DefaultField
	auxField, err := c.checkPathReadable(caller, base, auxPath)
	if err != nil {
		return nil, err
	}

	var cols []Column
	if !q.SelectsPath(auxPath) {
		q.Select = append(q.Select, dal.SelectExpr{Path: auxPath})
		cols = append(cols, Column{Path: auxPath, Label: labelFor("", auxField, dict), Aux: true})
	}
	if !q.GroupsBy(auxPath) {
		q.GroupBy = append(q.GroupBy, auxPath)
	}
	return cols, nil
}

// checkPathReadable walks a dotted path verifying the caller may read every
// field on it and every type it traverses. Returns the terminal field.
func (c *Compiler) checkPathReadable(caller *auth.Data, base *meta.Type, path string) (*meta.Field, error) {
	t := base
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		f, err := t.Field(seg)
		if err != nil {
			return nil, err
		}
		if !caller.CanReadField(f) {
			return nil, &PermissionError{Key: KeyFieldNotReadable, Subject: t.Name + "." + f.Name}
		}
		if i == len(segments)-1 {
			return f, nil
		}
		ref, ok := f.Kind.(meta.Reference)
		if !ok {
			return nil, fmt.Errorf("cannot traverse field %q on type %s: kind %s is not a reference", seg, t.Name, meta.KindName(f.Kind))
		}
		t, err = c.prov.Type(ref.Type)
		if err != nil {
			return nil, err
		}
		if !caller.CanReadType(t) {
			return nil, &PermissionError{Key: KeyTypeNotReadable, Subject: t.Name}
		}
	}
	return nil, fmt.Errorf("empty property path")
}

// labelFor resolves a column label: explicit alias first, then the field's
// i18n key (system fields always carry one), then the schema label.
func labelFor(alias string, field *meta.Field, dict *i18n.Dictionary) string {
	if alias != "" {
		return alias
	}
	if field.LabelKey != "" {
		return dict.Get(field.LabelKey)
	}
	return field.Label
}

func (c *Compiler) dictFor(caller *auth.Data) *i18n.Dictionary {
	locale := ""
	if caller != nil {
		locale = caller.Locale
	}
	return c.dicts.For(locale)
}

// parseOperator recognizes a JCR restriction operator: either the DAL symbol
// or its word form ("eq", "ne", "gt", "lt", "ge", "le", "like").
func parseOperator(s string) (dal.Operator, error) {
	switch strings.ToLower(s) {
	case "=", "eq":
		return dal.OpEq, nil
	case "<>", "ne":
		return dal.OpNe, nil
	case ">", "gt":
		return dal.OpGt, nil
	case "<", "lt":
		return dal.OpLt, nil
	case ">=", "ge":
		return dal.OpGe, nil
	case "<=", "le":
		return dal.OpLe, nil
	case "like":
		return dal.OpLike, nil
	default:
		return "", fmt.Errorf("unknown restriction operator %q", s)
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
