package dal

import (
	"fmt"
	"strconv"
	"strings"
)

// Render emits the canonical query text for the AST. Rendering is the last
// step of compilation; nothing edits the emitted text afterwards.
func (q *Query) Render() (string, error) {
	if len(q.Select) == 0 {
		return "", fmt.Errorf("query has no select list")
	}
	if q.From == "" {
		return "", fmt.Errorf("query has no FROM type")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")

	cols := make([]string, 0, len(q.Select))
	for _, s := range q.Select {
		col := s.Key()
		if s.Alias != "" {
			col += " AS " + s.Alias
		}
		cols = append(cols, col)
	}
	sb.WriteString(strings.Join(cols, ", "))

	sb.WriteString(" FROM ")
	sb.WriteString(q.From)

	if len(q.Where) > 0 {
		sb.WriteString(" WHERE ")
		conds := make([]string, 0, len(q.Where))
		for _, r := range q.Where {
			lit, err := renderLiteral(r.Value)
			if err != nil {
				return "", fmt.Errorf("restriction on %s: %w", r.Path, err)
			}
			conds = append(conds, fmt.Sprintf("%s %s %s", r.Path, r.Op, lit))
		}
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(q.GroupBy, ", "))
	}

	if len(q.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		terms := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, o.Path+" "+dir)
		}
		sb.WriteString(strings.Join(terms, ", "))
	}

	if q.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*q.Offset))
	}

	return sb.String(), nil
}

// renderLiteral formats a restriction value. Strings are single-quoted with
// embedded quotes doubled, so a literal containing "SELECT " can never
// corrupt the rendered query.
func renderLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}
