// Package sheet reads the listing spreadsheet into raw rows.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"davos_stays/models"
)

// Read picks a reader by file extension. The first row is treated as a header.
func Read(path string) ([]models.RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format %q", filepath.Ext(path))
	}
}

// ReadXLSX reads the active sheet of a workbook. Row numbers match the ones
// shown in the spreadsheet application.
func ReadXLSX(path string) ([]models.RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())
	if sheetName == "" {
		return nil, fmt.Errorf("workbook %s has no active sheet", path)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}

	return toRawRows(rows), nil
}

// ReadCSV reads comma separated rows with a header line.
func ReadCSV(r io.Reader) ([]models.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRawRows(records), nil
}

func toRawRows(records [][]string) []models.RawRow {
	if len(records) <= 1 {
		return nil
	}

	rows := make([]models.RawRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := models.RawRow{Number: i + 2, Cells: make([]models.Cell, len(rec))}
		for j, v := range rec {
			row.Cells[j] = models.TextCell(v)
		}
		rows = append(rows, row)
	}
	return rows
}
