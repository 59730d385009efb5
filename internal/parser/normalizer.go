package parser

import (
	"sort"
	"strings"
	"time"

	"vessel-cbm-monitor/internal/models"
)

// Reserved source columns.
const (
	ColumnEquipmentCode    = "MP_NUMBER"
	ColumnComponent        = "COMP_NAME"
	ColumnMeasurementPoint = "MP_NAME"
	ColumnSubComponent     = "COMP_NUMBER"
	ColumnDate             = "DATE"
	ColumnTime             = "TIME"
	ColumnTimestamp        = "TIMESTAMP"
)

var reservedColumns = map[string]bool{
	ColumnEquipmentCode:    true,
	ColumnComponent:        true,
	ColumnMeasurementPoint: true,
	ColumnSubComponent:     true,
	ColumnDate:             true,
	ColumnTime:             true,
	ColumnTimestamp:        true,
}

// IsReserved reports whether a column carries row identity or time rather
// than a measured parameter.
func IsReserved(column string) bool {
	return reservedColumns[strings.ToUpper(strings.TrimSpace(column))]
}

// Options select which parameters are extracted from a row.
type Options struct {
	// AllNumeric extracts every numeric non-reserved column. When false only
	// the built-in parameters are considered.
	AllNumeric bool
	// RespectToggles applies the Process* toggles to built-in parameters in
	// AllNumeric mode. Legacy mode always applies them.
	RespectToggles bool

	ProcessVibration bool
	ProcessRPM       bool
	ProcessAmpere    bool
}

// DefaultOptions extracts every numeric column.
func DefaultOptions() Options {
	return Options{
		AllNumeric:       true,
		ProcessVibration: true,
		ProcessRPM:       true,
		ProcessAmpere:    true,
	}
}

func (o Options) allows(parameter string) bool {
	switch parameter {
	case models.ParamVelocity, models.ParamDisplacement, models.ParamAcceleration:
		return o.ProcessVibration
	case models.ParamRPM:
		return o.ProcessRPM
	case models.ParamAmpere:
		return o.ProcessAmpere
	}
	return true
}

func isBuiltin(parameter string) bool {
	for _, p := range models.BuiltinOrder {
		if p == parameter {
			return true
		}
	}
	return false
}

// ParameterRegistry records parameter names as they are discovered.
type ParameterRegistry interface {
	Register(name string)
}

// RowResult is the outcome of normalizing one row.
type RowResult struct {
	Readings    []models.Reading
	Association models.Association
	// Metadata keeps non-numeric, non-empty values of parameter columns.
	Metadata        map[string]string
	TimestampDefect bool
	Skipped         bool
}

// Normalizer converts raw rows into readings.
type Normalizer struct {
	resolver *Resolver
	opts     Options
	params   ParameterRegistry
	now      func() time.Time
}

// NewNormalizer creates a normalizer. params may be nil.
func NewNormalizer(resolver *Resolver, opts Options, params ParameterRegistry) *Normalizer {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Normalizer{
		resolver: resolver,
		opts:     opts,
		params:   params,
		now:      time.Now,
	}
}

// WithClock returns a copy using now for unresolvable timestamps.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	c := *n
	c.now = now
	return &c
}

// WithRegistry returns a copy registering parameters into params.
func (n *Normalizer) WithRegistry(params ParameterRegistry) *Normalizer {
	c := *n
	c.params = params
	return &c
}

// Options returns the extraction options.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize converts one row into zero or more readings for vessel.
func (n *Normalizer) Normalize(row models.Row, vessel string) RowResult {
	codeCell, _ := row.Get(ColumnEquipmentCode)
	if codeCell.IsEmpty() {
		return RowResult{Skipped: true}
	}

	assoc := models.Association{
		Vessel:           vessel,
		EquipmentCode:    codeCell.String(),
		Component:        cellString(row, ColumnComponent),
		MeasurementPoint: cellString(row, ColumnMeasurementPoint),
		SubComponentCode: cellString(row, ColumnSubComponent),
	}

	result := RowResult{Association: assoc}

	ts, ok := n.resolveTimestamp(row)
	if !ok {
		ts = n.now()
		result.TimestampDefect = true
	}

	emit := func(parameter string, cell models.Cell) {
		if cell.IsEmpty() {
			return
		}
		value, ok := cell.Float()
		if !ok {
			if result.Metadata == nil {
				result.Metadata = make(map[string]string)
			}
			result.Metadata[parameter] = cell.String()
			return
		}
		if n.params != nil {
			n.params.Register(parameter)
		}
		result.Readings = append(result.Readings, models.Reading{
			Vessel:           assoc.Vessel,
			EquipmentCode:    assoc.EquipmentCode,
			Component:        assoc.Component,
			MeasurementPoint: assoc.MeasurementPoint,
			SubComponentCode: assoc.SubComponentCode,
			Parameter:        parameter,
			Value:            value,
			Timestamp:        ts,
		})
	}

	if !n.opts.AllNumeric {
		for _, parameter := range models.BuiltinOrder {
			if !n.opts.allows(parameter) {
				continue
			}
			if cell, ok := row[parameter]; ok {
				emit(parameter, cell)
			}
		}
		return result
	}

	columns := make([]string, 0, len(row))
	for column := range row {
		if IsReserved(column) || strings.TrimSpace(column) == "" {
			continue
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		parameter := strings.TrimSpace(column)
		if n.opts.RespectToggles && isBuiltin(parameter) && !n.opts.allows(parameter) {
			continue
		}
		emit(parameter, row[column])
	}
	return result
}

func (n *Normalizer) resolveTimestamp(row models.Row) (time.Time, bool) {
	clock, _ := row.Get(ColumnTime)
	if date, ok := row.Get(ColumnDate); ok && !date.IsEmpty() {
		return n.resolver.Resolve(date, clock)
	}
	if combined, ok := row.Get(ColumnTimestamp); ok && !combined.IsEmpty() {
		return n.resolver.Resolve(combined, clock)
	}
	return time.Time{}, false
}

func cellString(row models.Row, column string) string {
	c, ok := row.Get(column)
	if !ok {
		return ""
	}
	return c.String()
}
