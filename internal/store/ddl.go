package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kommetio/reportgrid/internal/meta"
)

// EnsureTypeTables creates a data table for every registered type. Scalar,
// reference, formula and autonumber fields become columns; inverse and
// association fields are virtual and have no storage. Reference columns hold
// the KID of the referenced record. Idempotent.
func (s *Store) EnsureTypeTables(ctx context.Context, prov meta.Provider) error {
	for _, t := range prov.Types() {
		ddl, indexes := typeDDL(t)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table for type %s: %w", t.Name, err)
		}
		for _, idx := range indexes {
			if _, err := s.db.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("create index for type %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func typeDDL(t *meta.Type) (string, []string) {
	var cols []string
	var indexes []string
	for _, f := range t.Fields() {
		col, ok := columnDef(f)
		if !ok {
			continue
		}
		cols = append(cols, col)
		if _, isRef := f.Kind.(meta.Reference); isRef {
			indexes = append(indexes, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)`,
				t.Table, strings.ToLower(f.Name), quoteIdent(t.Table), quoteIdent(f.Name)))
		}
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		quoteIdent(t.Table), strings.Join(cols, ",\n    "))
	return ddl, indexes
}

func columnDef(f *meta.Field) (string, bool) {
	var sqlType string
	switch kind := f.Kind.(type) {
	case meta.Scalar:
		sqlType = scalarSQLType(kind.Base)
	case meta.Reference:
		sqlType = "TEXT"
	case meta.Formula:
		// materialized by the writer
		sqlType = scalarSQLType(kind.Result)
	case meta.AutoNumber:
		sqlType = "TEXT"
	default:
		// inverse and association fields are virtual
		return "", false
	}

	col := quoteIdent(f.Name) + " " + sqlType
	if f.Name == meta.IDField {
		col += " PRIMARY KEY"
	} else if f.Required {
		col += " NOT NULL"
	}
	return col, true
}

func scalarSQLType(base meta.ScalarType) string {
	switch base {
	case meta.NumberType:
		return "REAL"
	case meta.BoolType:
		return "INTEGER"
	default:
		// text, enum, date, datetime
		return "TEXT"
	}
}

// quoteIdent double-quotes an identifier. Field and table names come from the
// runtime schema, not from trusted source code.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
