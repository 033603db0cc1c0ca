package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
	"github.com/kommetio/reportgrid/internal/meta"
	"github.com/kommetio/reportgrid/internal/record"
)

// XLSX writes query results as a workbook with a single sheet named after
// the base type's plural label.
type XLSX struct {
	Prov meta.Provider
}

func (e *XLSX) Encode(caller *auth.Data, base *meta.Type, cols []compiler.Column, recs []*record.Record, w io.Writer) error {
	cols = readableColumns(caller, e.Prov, base, cols)

	f := excelize.NewFile()
	defer f.Close()

	sheet := base.PluralLabel
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, col := range cols {
		header[i] = col.Label
	}
	if err := e.writeRow(f, sheet, 1, header); err != nil {
		return err
	}

	for ri, rec := range recs {
		row := make([]any, len(cols))
		for i, col := range cols {
			row[i] = cellValue(rec, col)
		}
		if err := e.writeRow(f, sheet, ri+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *XLSX) writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
