// Package record models one row of query results. Values are addressable by
// dotted field path; rows of grouped or aggregated queries additionally
// carry values keyed by aggregate expression, e.g. "COUNT(id)".
package record

import (
	"errors"
	"fmt"
	"strings"
)

// Record is one result row. Relationship values are nested *Record
// instances, so "owner.name" reads through the nested record for "owner".
// Field order is preserved as set; it drives export column traversal.
type Record struct {
	values     map[string]any
	order      []string
	aggregates map[string]any
	aggOrder   []string
}

// idField is where a reference column's raw value lives once the path it
// names also holds a nested record: the value is the related record's id.
const idField = "id"

func New() *Record {
	return &Record{values: make(map[string]any), aggregates: make(map[string]any)}
}

// SetField sets a value at a dotted path, creating intermediate nested
// records as needed. A path can hold both a reference id and a nested
// record (a query may select "owner" alongside "owner.name"); whichever
// arrives second folds the id into the nested record's id field, so
// neither value is lost.
func (r *Record) SetField(path string, v any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		if child, ok := r.values[head].(*Record); ok {
			child.SetField(idField, v)
			return
		}
		if _, ok := r.values[head]; !ok {
			r.order = append(r.order, head)
		}
		r.values[head] = v
		return
	}

	child, ok := r.values[head].(*Record)
	if !ok {
		child = New()
		prev, present := r.values[head]
		if !present {
			r.order = append(r.order, head)
		} else if prev != nil {
			child.SetField(idField, prev)
		}
		r.values[head] = child
	}
	child.SetField(rest, v)
}

// Field reads a value at a dotted path. Missing segments read as (nil,
// false).
func (r *Record) Field(path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := r.values[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return v, true
	}
	child, ok := v.(*Record)
	if !ok {
		return nil, false
	}
	return child.Field(rest)
}

// IsSet reports whether a value exists at the path.
func (r *Record) IsSet(path string) bool {
	_, ok := r.Field(path)
	return ok
}

// FieldNames returns the top-level field names in insertion order.
func (r *Record) FieldNames() []string {
	return r.order
}

// SetAggregate stores a computed aggregate value under its expression key.
func (r *Record) SetAggregate(key string, v any) {
	if _, ok := r.aggregates[key]; !ok {
		r.aggOrder = append(r.aggOrder, key)
	}
	r.aggregates[key] = v
}

// Aggregate reads an aggregate value by its expression key.
func (r *Record) Aggregate(key string) (any, bool) {
	v, ok := r.aggregates[key]
	return v, ok
}

// AggregateKeys returns the aggregate expression keys in insertion order.
func (r *Record) AggregateKeys() []string {
	return r.aggOrder
}

// ErrUnknownColumn is returned when a requested key is neither a set field
// path nor a known aggregate expression.
var ErrUnknownColumn = errors.New("unknown column")

// Projection gives uniform access to plain and aggregate values: callers
// ask for a column key without knowing which case applies. The view layer
// and the exporters both read rows through this.
type Projection struct {
	rec *Record
}

func Project(r *Record) Projection {
	return Projection{rec: r}
}

// Value returns the value for a column key: the plain field value if the
// path is set, otherwise the aggregate value for the key. A key that is
// neither is an error, never a silent nil.
func (p Projection) Value(key string) (any, error) {
	if v, ok := p.rec.Field(key); ok {
		return v, nil
	}
	if v, ok := p.rec.Aggregate(key); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
}

// Record returns the wrapped row.
func (p Projection) Record() *Record { return p.rec }
