package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellTime
)

// Cell is one raw spreadsheet value.
type Cell struct {
	Kind CellKind
	Num  float64
	// Text keeps the source spelling, also for numbers ("007" stays "007").
	Text string
	Time time.Time
}

// Row maps source column names to raw cell values.
type Row map[string]Cell

func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Num: v}
}

func TextCell(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

func TimeCell(t time.Time) Cell {
	return Cell{Kind: CellTime, Time: t}
}

// CellFromString classifies a raw textual value the way a spreadsheet would:
// blank is empty, a finite decimal is a number, anything else is text.
func CellFromString(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Cell{}
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return Cell{Kind: CellNumber, Num: v, Text: trimmed}
	}
	return Cell{Kind: CellText, Text: s}
}

// CellFromAny converts a decoded JSON or Go value into a Cell.
func CellFromAny(v any) Cell {
	switch t := v.(type) {
	case nil:
		return Cell{}
	case Cell:
		return t
	case float64:
		return NumberCell(t)
	case float32:
		return NumberCell(float64(t))
	case int:
		return NumberCell(float64(t))
	case int64:
		return NumberCell(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Cell{Kind: CellNumber, Num: f, Text: t.String()}
		}
		return TextCell(t.String())
	case string:
		return CellFromString(t)
	case time.Time:
		return TimeCell(t)
	case bool:
		return TextCell(strconv.FormatBool(t))
	}
	return Cell{}
}

// IsEmpty reports whether the cell carries no usable value.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	case CellTime:
		return c.Time.IsZero()
	}
	return false
}

// String renders the cell as a dimension value.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		if c.Text != "" {
			return c.Text
		}
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return strings.TrimSpace(c.Text)
	case CellTime:
		return c.Time.Format(time.RFC3339)
	}
	return ""
}

// Float returns the finite numeric value of the cell, if any.
func (c Cell) Float() (float64, bool) {
	var v float64
	switch c.Kind {
	case CellNumber:
		v = c.Num
	case CellText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Get looks a column up by exact name, then case-insensitively.
func (r Row) Get(name string) (Cell, bool) {
	if c, ok := r[name]; ok {
		return c, true
	}
	for k, c := range r {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return c, true
		}
	}
	return Cell{}, false
}

// RowFromMap converts a decoded JSON object into a Row.
func RowFromMap(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[strings.TrimSpace(k)] = CellFromAny(v)
	}
	return row
}
