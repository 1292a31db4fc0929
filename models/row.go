package models

import (
	"math"
	"strconv"
	"strings"
)

// Column positions of the listing spreadsheet.
const (
	ColType = iota
	ColAddress
	ColBedrooms
	ColBathrooms
	ColGuests
	ColPrice
	ColCleaningFee
	ColDeposit
	ColDistance
	ColAvailability
	ColLink
	ColOwner
)

// Cell is a single spreadsheet value. IsNum is set when the sheet stored a number.
type Cell struct {
	Text  string
	Num   float64
	IsNum bool
}

// TextCell builds a cell from text, detecting plain numeric values.
func TextCell(s string) Cell {
	c := Cell{Text: s}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		c.Num = f
		c.IsNum = true
	}
	return c
}

// NumCell builds a numeric cell.
func NumCell(f float64) Cell {
	return Cell{Text: strconv.FormatFloat(f, 'f', -1, 64), Num: f, IsNum: true}
}

// Empty reports whether the cell carries no usable text.
func (c Cell) Empty() bool {
	return !c.IsNum && strings.TrimSpace(c.Text) == ""
}

// RawRow is one spreadsheet row as read, before normalization.
type RawRow struct {
	Number int
	Cells  []Cell
}

// Cell returns the cell at col, or an empty cell for short rows.
func (r RawRow) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[col]
}

// NewRawRow converts plain values into cells. Supported values are string,
// int, float64 and nil.
func NewRawRow(number int, values ...any) RawRow {
	row := RawRow{Number: number, Cells: make([]Cell, len(values))}
	for i, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			row.Cells[i] = Cell{Text: val}
		case int:
			row.Cells[i] = NumCell(float64(val))
		case float64:
			row.Cells[i] = NumCell(val)
		}
	}
	return row
}
