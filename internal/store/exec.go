package store

import (
	"context"
	"fmt"

	"github.com/kommetio/reportgrid/internal/dal"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// Executor turns DAL query text into executable queries against the record
// store.
type Executor struct {
	store *Store
	prov  meta.Provider
}

func NewExecutor(store *Store, prov meta.Provider) *Executor {
	return &Executor{store: store, prov: prov}
}

// Parse compiles DAL query text for execution.
func (e *Executor) Parse(text string) (*ExecutableQuery, error) {
	q, err := dal.Parse(text)
	if err != nil {
		return nil, err
	}
	return e.ParseQuery(q)
}

// ParseQuery compiles an already-built DAL AST for execution.
func (e *Executor) ParseQuery(q *dal.Query) (*ExecutableQuery, error) {
	compiled, err := buildSQL(e.prov, q)
	if err != nil {
		return nil, err
	}
	return &ExecutableQuery{Query: q, exec: e, compiled: compiled}, nil
}

// ExecutableQuery is a DAL query bound to SQL, ready to run.
type ExecutableQuery struct {
	Query    *dal.Query
	exec     *Executor
	compiled *compiledSQL
}

// SQL returns the generated SQL text, for logging and tests.
func (q *ExecutableQuery) SQL() string { return q.compiled.text }

// Params returns the SQL parameters.
func (q *ExecutableQuery) Params() []any { return q.compiled.params }

// List runs the query and maps each row to a record. Plain columns set
// dotted field paths (nesting records along relationships); aggregate
// columns set aggregate values keyed by expression, e.g. "COUNT(id)".
func (q *ExecutableQuery) List(ctx context.Context) ([]*record.Record, error) {
	rows, err := q.exec.store.Query(ctx, q.compiled.text, q.compiled.params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		scan := make([]any, len(q.compiled.selects))
		for i := range scan {
			scan[i] = new(any)
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := record.New()
		for i, bound := range q.compiled.selects {
			v := fromSQL(bound, *scan[i].(*any))
			if bound.expr.Func == "" {
				rec.SetField(bound.expr.Path, v)
			} else {
				rec.SetAggregate(bound.expr.Key(), v)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Count runs the query and returns the single aggregate value of its first
// row. Only valid for an ungrouped query whose select list is one COUNT
// column; grouped totals are len(List()).
func (q *ExecutableQuery) Count(ctx context.Context) (int64, error) {
	if q.Query.HasGroupings() {
		return 0, fmt.Errorf("count on grouped query: total is the number of result rows")
	}
	var n int64
	err := q.exec.store.DB().QueryRowContext(ctx, q.compiled.text, q.compiled.params...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("execute count: %w", err)
	}
	return n, nil
}

// fromSQL maps a scanned SQLite value back to its record form. Bool columns
// are stored as integers; text arrives as []byte from some drivers.
func fromSQL(bound boundSelect, v any) any {
	if v == nil {
		return nil
	}
	if raw, ok := v.([]byte); ok {
		v = string(raw)
	}
	if bound.expr.Func != "" {
		return v
	}
	if scalar, ok := bound.field.Kind.(meta.Scalar); ok && scalar.Base == meta.BoolType {
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}
