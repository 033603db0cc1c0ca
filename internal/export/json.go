package export

import (
	"encoding/json"
	"fmt"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// MaxTreeDepth bounds how many relationship levels the JSON tree nests.
// Records reached through deeper chains are omitted from the output.
const MaxTreeDepth = 2

// JSON writes query results as a tree: each record is an object whose
// relationship values are nested objects, and aggregate values appear under
// their expression keys, e.g. "COUNT(id)".
type JSON struct {
	Prov meta.Provider
}

// EncodeRecords encodes rows as a JSON array.
func (e *JSON) EncodeRecords(caller *auth.Data, base *meta.Type, recs []*record.Record) ([]byte, error) {
	rows := e.rows(caller, base, recs)
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// EncodeDataSource encodes rows in the datasource envelope consumed by table
// components: {"data": [...], "recordCount": N}.
func (e *JSON) EncodeDataSource(caller *auth.Data, base *meta.Type, recs []*record.Record, recordCount int64) ([]byte, error) {
	envelope := map[string]any{
		"data":        e.rows(caller, base, recs),
		"recordCount": recordCount,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode datasource: %w", err)
	}
	return data, nil
}

func (e *JSON) rows(caller *auth.Data, base *meta.Type, recs []*record.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, e.row(caller, base, rec, 0))
	}
	return rows
}

func (e *JSON) row(caller *auth.Data, t *meta.Type, rec *record.Record, depth int) map[string]any {
	out := make(map[string]any)

	for _, name := range rec.FieldNames() {
		f, err := t.Field(name)
		if err != nil {
			continue
		}
		if !caller.CanReadField(f) {
			continue
		}
		v, _ := rec.Field(name)

		nested, isNested := v.(*record.Record)
		if !isNested {
			out[name] = v
			continue
		}
		if depth >= MaxTreeDepth {
			continue
		}
		related, err := meta.RelatedType(e.Prov, f)
		if err != nil || !caller.CanReadType(related) {
			continue
		}
		out[name] = e.row(caller, related, nested, depth+1)
	}

	for _, key := range rec.AggregateKeys() {
		v, _ := rec.Aggregate(key)
		out[key] = v
	}
	return out
}
