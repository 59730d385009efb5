package models

import (
	"fmt"
	"time"
)

// EquipmentFilter selects readings for the equipment views. Empty fields
// do not constrain.
type EquipmentFilter struct {
	Vessel        string
	EquipmentCode string
	Component     string
	Parameter     string
}

// RawFilter selects readings for the raw listing.
type RawFilter struct {
	Search    string
	Vessel    string
	Parameter string
	RangeDays int
}

// RecentReading is a reading annotated for tabular display.
type RecentReading struct {
	Reading
	Unit   string `json:"unit"`
	Status string `json:"status"`
}

// PairedPoint is an RPM/current pair sharing one exact timestamp.
type PairedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	RPM       float64   `json:"rpm"`
	Ampere    float64   `json:"ampere"`
}

// TrendPoint is one chart point.
type TrendPoint struct {
	X time.Time `json:"x"`
	Y float64   `json:"y"`
}

// TrendStats holds descriptive statistics. Nil fields mean the filtered
// set was empty.
type TrendStats struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
	Minimum *float64 `json:"minimum"`
	Maximum *float64 `json:"maximum"`
	StdDev  *float64 `json:"stddev"`
}

// EmptyStat is shown in place of a statistic over an empty set.
const EmptyStat = "-"

// FormatStat renders a statistic with two decimals and the unit.
func FormatStat(v *float64, unit string) string {
	if v == nil {
		return EmptyStat
	}
	if unit == "" {
		return fmt.Sprintf("%.2f", *v)
	}
	return fmt.Sprintf("%.2f %s", *v, unit)
}

// FleetTrend is the fleet-wide trend for one parameter.
type FleetTrend struct {
	Parameter      string                  `json:"parameter"`
	Unit           string                  `json:"unit"`
	Vessels        []string                `json:"vessels"`
	SeriesByVessel map[string][]TrendPoint `json:"seriesByVessel"`
	Stats          TrendStats              `json:"stats"`
}

// RawPage is one page of the raw listing.
type RawPage struct {
	TotalCount int       `json:"totalCount"`
	TotalPages int       `json:"totalPages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Items      []Reading `json:"items"`
}

// Staleness sort orders.
const (
	SortByDays      = "days"
	SortByVessel    = "vessel"
	SortByEquipment = "equipment"
)

// MissingEquipment is an equipment/component whose last reading is stale.
type MissingEquipment struct {
	Vessel               string    `json:"vessel"`
	EquipmentCode        string    `json:"equipmentCode"`
	Component            string    `json:"component"`
	LastReading          time.Time `json:"lastReading"`
	DaysSinceLastReading int       `json:"daysSinceLastReading"`
	Severity             string    `json:"severity,omitempty"`
}

// StalenessSeverity buckets the age of the last reading.
func StalenessSeverity(days int) string {
	switch {
	case days >= 90:
		return "critical"
	case days >= 60:
		return "warning"
	case days >= 30:
		return "notice"
	}
	return ""
}
