// Package sheet reads uploaded spreadsheet files into raw row grids.
package sheet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/parser"
)

// ReadRows loads the first sheet of an .xlsx file, or all records of a .csv
// file, as raw rows. Cell values are the displayed strings.
func ReadRows(path string) ([]parser.RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readExcel(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func readExcel(path string) ([]parser.RawRow, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	out := make([]parser.RawRow, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

func readCSV(path string) ([]parser.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	out := make([]parser.RawRow, len(records))
	for i, rec := range records {
		out[i] = rec
	}
	return out, nil
}
