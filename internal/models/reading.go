package models

import (
	"fmt"
	"time"
)

// Reading is one timestamped scalar measurement of one parameter on one
// piece of equipment. Readings are never modified after creation.
type Reading struct {
	Vessel           string    `json:"vessel"`
	EquipmentCode    string    `json:"equipmentCode"`
	Component        string    `json:"component"`
	MeasurementPoint string    `json:"measurementPoint"`
	SubComponentCode string    `json:"subComponentCode"`
	Parameter        string    `json:"parameter"`
	Value            float64   `json:"value"`
	Timestamp        time.Time `json:"timestamp"`
}

// Dimension names one axis of the relationship index.
type Dimension string

const (
	DimVessel           Dimension = "vessel"
	DimEquipmentCode    Dimension = "equipmentCode"
	DimComponent        Dimension = "component"
	DimMeasurementPoint Dimension = "measurementPoint"
	DimSubComponentCode Dimension = "subComponentCode"
)

// Dimensions lists every indexed dimension in a fixed order.
var Dimensions = []Dimension{
	DimVessel,
	DimEquipmentCode,
	DimComponent,
	DimMeasurementPoint,
	DimSubComponentCode,
}

// ParseDimension accepts the canonical name or a few common aliases.
func ParseDimension(s string) (Dimension, error) {
	switch s {
	case "vessel", "vessels":
		return DimVessel, nil
	case "equipmentCode", "equipment", "code", "equipment_code":
		return DimEquipmentCode, nil
	case "component", "components":
		return DimComponent, nil
	case "measurementPoint", "point", "measurement_point":
		return DimMeasurementPoint, nil
	case "subComponentCode", "subcomponent", "sub_component_code":
		return DimSubComponentCode, nil
	}
	return "", fmt.Errorf("unknown dimension: %s", s)
}

// Association is the set of dimension values observed together on one row.
type Association struct {
	Vessel           string
	EquipmentCode    string
	Component        string
	MeasurementPoint string
	SubComponentCode string
}

// Value returns the association's value for d.
func (a Association) Value(d Dimension) string {
	switch d {
	case DimVessel:
		return a.Vessel
	case DimEquipmentCode:
		return a.EquipmentCode
	case DimComponent:
		return a.Component
	case DimMeasurementPoint:
		return a.MeasurementPoint
	case DimSubComponentCode:
		return a.SubComponentCode
	}
	return ""
}

// Association returns the dimension values carried by the reading.
func (r Reading) Association() Association {
	return Association{
		Vessel:           r.Vessel,
		EquipmentCode:    r.EquipmentCode,
		Component:        r.Component,
		MeasurementPoint: r.MeasurementPoint,
		SubComponentCode: r.SubComponentCode,
	}
}

// VesselQuality counts data-quality defects for one vessel during ingestion.
type VesselQuality struct {
	Vessel           string  `json:"vessel"`
	Rows             int     `json:"rows"`
	SkippedRows      int     `json:"skipped_rows"`
	Readings         int     `json:"readings"`
	TimestampDefects int     `json:"timestamp_defects"`
	Score            float64 `json:"score"`
}

// ComputeScore fills Score as the percentage of rows with a resolvable timestamp.
func (q *VesselQuality) ComputeScore() {
	processed := q.Rows - q.SkippedRows
	if processed <= 0 {
		q.Score = 100
		return
	}
	q.Score = 100 * (1 - float64(q.TimestampDefects)/float64(processed))
}

// FileSummary describes what one ingested file contributed.
type FileSummary struct {
	File             string `json:"file"`
	Vessel           string `json:"vessel"`
	Rows             int    `json:"rows"`
	SkippedRows      int    `json:"skipped_rows"`
	Readings         int    `json:"readings"`
	TimestampDefects int    `json:"timestamp_defects"`
}

// FileFailure is a file the batch could not read or parse.
type FileFailure struct {
	File     string `json:"file"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

// BatchResult is the outcome surfaced after an ingestion batch completes.
type BatchResult struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
	Files          []FileSummary   `json:"files"`
	ProcessedFiles int             `json:"processed_files"`
	Records        int             `json:"records"`
	Failures       []FileFailure   `json:"failures,omitempty"`
	Quality        []VesselQuality `json:"quality"`
}
