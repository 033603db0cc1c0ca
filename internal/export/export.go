// Package export encodes query results for delivery: a nested JSON tree, a
// delimited CSV table, and an XLSX workbook. All tabular encoders consume the
// same column plan, so a column appears in every format or in none.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// Format is an export output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat recognizes a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// FileName derives the download file name: the explicit export name if given,
// otherwise the base type's plural label.
func FileName(exportName string, base *meta.Type, format Format) string {
	name := exportName
	if name == "" {
		name = base.PluralLabel
	}
	return name + format.Extension()
}

// readableColumns filters the column plan down to columns whose every path
// segment the caller may read. Compilation already rejects unreadable fields;
// this guards the window between compile and encode.
func readableColumns(caller *auth.Data, prov meta.Provider, base *meta.Type, cols []compiler.Column) []compiler.Column {
	out := make([]compiler.Column, 0, len(cols))
	for _, col := range cols {
		if pathReadable(caller, prov, base, col.Path) {
			out = append(out, col)
		}
	}
	return out
}

func pathReadable(caller *auth.Data, prov meta.Provider, base *meta.Type, path string) bool {
	t := base
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		f, err := t.Field(seg)
		if err != nil {
			return false
		}
		if !caller.CanReadField(f) {
			return false
		}
		if i == len(segments)-1 {
			return true
		}
		ref, ok := f.Kind.(meta.Reference)
		if !ok {
			return false
		}
		t, err = prov.Type(ref.Type)
		if err != nil || !caller.CanReadType(t) {
			return false
		}
	}
	return false
}

// cellValue reads one column value from a row. A key missing from the row
// (e.g. a column dropped between compile and execute) reads as nil. A
// reference column whose path holds a nested record flattens to the related
// record's id.
func cellValue(rec *record.Record, col compiler.Column) any {
	v, err := record.Project(rec).Value(col.Key())
	if err != nil {
		return nil
	}
	if nested, ok := v.(*record.Record); ok {
		id, _ := nested.Field(meta.IDField)
		return id
	}
	return v
}

// formatCell renders a cell value as text for CSV output.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
