package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// Insert persists one record of a runtime type. A missing id is minted from
// the type's key prefix; system timestamps are stamped in UTC RFC 3339. The
// stored record's id is returned.
func (s *Store) Insert(ctx context.Context, t *meta.Type, rec *record.Record) (meta.KID, error) {
	id := meta.NewKID(t.KeyPrefix)
	if v, ok := rec.Field(meta.IDField); ok {
		raw, isString := v.(string)
		if !isString {
			return "", fmt.Errorf("insert into %s: id is not a string", t.Name)
		}
		parsed, err := meta.ParseKID(raw)
		if err != nil {
			return "", fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		id = parsed
	}

	now := time.Now().UTC().Format(time.RFC3339)

	cols := []string{quoteIdent(meta.IDField), quoteIdent(meta.CreatedDateField), quoteIdent(meta.ModifiedDateField)}
	args := []any{id.String(), now, now}

	for _, f := range t.Fields() {
		if meta.IsSystemField(f.Name) {
			continue
		}
		if _, storable := columnDef(f); !storable {
			continue
		}
		v, ok := rec.Field(f.Name)
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(f.Name))
		args = append(args, storableValue(f, v))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Table), strings.Join(cols, ", "), placeholders)

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return "", fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	return id, nil
}

// storableValue maps a record value to its SQL parameter form. Nested records
// under a reference field collapse to the referenced record's id.
func storableValue(f *meta.Field, v any) any {
	if nested, ok := v.(*record.Record); ok {
		if id, ok := nested.Field(meta.IDField); ok {
			return id
		}
		return nil
	}
	return v
}
