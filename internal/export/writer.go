package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes rows to a new workbook at path, starting below
// headerRows blank layout rows so the result reads back with the same
// Reader settings.
func WriteWorkbook(path, sheet string, headerRows int, rows []RawRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet %q: %w", sheet, err)
		}
	} else {
		sheet = DefaultSheet
	}

	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, headerRows+i+1)
		if err != nil {
			return err
		}
		cells := []string(row)
		if err := f.SetSheetRow(sheet, cellName, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
