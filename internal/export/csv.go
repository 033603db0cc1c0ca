package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// CSV writes query results as a delimited table: one header row of column
// labels, then one row per record.
type CSV struct {
	Prov meta.Provider
	// Delimiter defaults to ';', the separator expected by the spreadsheet
	// tools the exports feed.
	Delimiter rune
	// NoTransliterate disables the diacritic fallback table; by default CSV
	// text is transliterated.
	NoTransliterate bool
}

func (e *CSV) Encode(caller *auth.Data, base *meta.Type, cols []compiler.Column, recs []*record.Record, w io.Writer) error {
	cols = readableColumns(caller, e.Prov, base, cols)

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if e.Delimiter != 0 {
		cw.Comma = e.Delimiter
	}

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = e.text(col.Label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	row := make([]string, len(cols))
	for _, rec := range recs {
		for i, col := range cols {
			row[i] = e.text(formatCell(cellValue(rec, col)))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func (e *CSV) text(s string) string {
	if e.NoTransliterate {
		return s
	}
	return transliterate(s)
}
