// Package export serializes query results for download.
package export

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vessel-cbm-monitor/internal/models"
)

// ErrNothingToExport is returned when a query produced no rows.
var ErrNothingToExport = errors.New("no data to export")

// Kind names an export and its file prefix.
type Kind string

const (
	KindEquipment Kind = "equipment_data"
	KindTrend     Kind = "trend_data"
	KindRaw       Kind = "raw_data"
	KindMissing   Kind = "missing_readings"
)

// ParseKind accepts a kind or its short alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equipment", string(KindEquipment):
		return KindEquipment, nil
	case "trend", string(KindTrend):
		return KindTrend, nil
	case "raw", string(KindRaw):
		return KindRaw, nil
	case "missing", string(KindMissing):
		return KindMissing, nil
	}
	return "", fmt.Errorf("unknown export kind: %s", s)
}

// FileName returns "<kind>_<YYYY-MM-DD>.<ext>" for the UTC date of now.
func FileName(kind Kind, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", kind, now.UTC().Format("2006-01-02"), ext)
}

// Field is one named value of a record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered list of fields; the order of the first record
// defines the default column order.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns lists the record's field names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Name
	}
	return cols
}

// Reading export column names.
const (
	ColTimestamp     = "Timestamp"
	ColVessel        = "Vessel"
	ColEquipmentCode = "Equipment Code"
	ColComponent     = "Component"
	ColParameter     = "Parameter"
	ColValue         = "Value"
)

// ReadingColumns is the header of the equipment, trend and raw exports.
var ReadingColumns = []string{ColTimestamp, ColVessel, ColEquipmentCode, ColComponent, ColParameter, ColValue}

// MissingColumns is the header of the missing readings export.
var MissingColumns = []string{"vessel", "equipmentCode", "component", "lastReading", "daysSinceLastReading"}

// DisplayTimeLayout renders timestamps in reading exports.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// ReadingRecords converts readings to export records.
func ReadingRecords(readings []models.Reading) []Record {
	out := make([]Record, 0, len(readings))
	for _, r := range readings {
		out = append(out, Record{
			{ColTimestamp, r.Timestamp.Format(DisplayTimeLayout)},
			{ColVessel, r.Vessel},
			{ColEquipmentCode, r.EquipmentCode},
			{ColComponent, r.Component},
			{ColParameter, r.Parameter},
			{ColValue, r.Value},
		})
	}
	return out
}

// MissingRecords converts staleness results to export records.
func MissingRecords(items []models.MissingEquipment) []Record {
	out := make([]Record, 0, len(items))
	for _, m := range items {
		out = append(out, Record{
			{"vessel", m.Vessel},
			{"equipmentCode", m.EquipmentCode},
			{"component", m.Component},
			{"lastReading", m.LastReading.UTC().Format(time.RFC3339)},
			{"daysSinceLastReading", m.DaysSinceLastReading},
		})
	}
	return out
}

// ToDelimitedText renders rows as comma separated text with one header
// line. Fields are joined without quoting, so embedded commas are not
// escaped. When columns is empty the first row's field order is used.
func ToDelimitedText(rows []Record, columns []string) (string, error) {
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}
	if len(columns) == 0 {
		columns = rows[0].Columns()
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(columns, ","))
	for _, row := range rows {
		fields := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row.Get(col); ok {
				fields[i] = formatValue(v)
			}
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n"), nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
