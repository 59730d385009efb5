// Package query answers the analytical questions asked of the reading
// store. Every operation works on a snapshot and never mutates it.
package query

import (
	"math"
	"sort"
	"strings"
	"time"

	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/models"
)

// DefaultPageSize is the raw listing page size.
const DefaultPageSize = 20

// DefaultRecentLimit is the number of rows in the recent readings table.
const DefaultRecentLimit = 10

// Source supplies a snapshot of readings and parameter metadata.
type Source interface {
	All() []models.Reading
	Parameter(name string) models.ParameterMetadata
}

// Engine runs queries against a Source.
type Engine struct {
	src Source
	now func() time.Time
}

// NewEngine creates an engine using the wall clock.
func NewEngine(src Source) *Engine {
	return &Engine{src: src, now: time.Now}
}

// WithClock returns a copy of the engine using now as the current time.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

type equipmentMatcher models.EquipmentFilter

func (f equipmentMatcher) match(r models.Reading) bool {
	if f.Vessel != "" && r.Vessel != f.Vessel {
		return false
	}
	if f.EquipmentCode != "" && r.EquipmentCode != f.EquipmentCode {
		return false
	}
	if f.Component != "" && r.Component != f.Component {
		return false
	}
	if f.Parameter != "" && r.Parameter != f.Parameter {
		return false
	}
	return true
}

func sortAscending(readings []models.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
}

func sortDescending(readings []models.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.After(readings[j].Timestamp)
	})
}

// EquipmentSeries returns the readings matching every non-empty field of f
// in ascending timestamp order; ties keep insertion order.
func (e *Engine) EquipmentSeries(f models.EquipmentFilter) []models.Reading {
	defer metrics.ObserveQuery("equipment_series", time.Now())

	m := equipmentMatcher(f)
	var out []models.Reading
	for _, r := range e.src.All() {
		if m.match(r) {
			out = append(out, r)
		}
	}
	sortAscending(out)
	return out
}

// RecentReadings returns the newest limit readings matching f, annotated
// with unit and threshold status.
func (e *Engine) RecentReadings(f models.EquipmentFilter, limit int) []models.RecentReading {
	defer metrics.ObserveQuery("recent_readings", time.Now())

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m := equipmentMatcher(f)
	var matched []models.Reading
	for _, r := range e.src.All() {
		if m.match(r) {
			matched = append(matched, r)
		}
	}
	sortDescending(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]models.RecentReading, 0, len(matched))
	for _, r := range matched {
		meta := e.src.Parameter(r.Parameter)
		out = append(out, models.RecentReading{
			Reading: r,
			Unit:    meta.Unit,
			Status:  meta.Status(r.Value),
		})
	}
	return out
}

// PairedSeries pairs RPM and current readings that share an exact
// timestamp. Groups lacking either parameter are dropped; readings whose
// timestamps differ at all never pair.
func (e *Engine) PairedSeries(vessel, equipmentCode, component string) []models.PairedPoint {
	defer metrics.ObserveQuery("paired_series", time.Now())

	type pair struct {
		ts             time.Time
		rpm, ampere    float64
		hasRPM, hasAmp bool
	}
	groups := make(map[int64]*pair)
	var order []int64

	m := equipmentMatcher{Vessel: vessel, EquipmentCode: equipmentCode, Component: component}
	for _, r := range e.src.All() {
		if !m.match(r) {
			continue
		}
		if r.Parameter != models.ParamRPM && r.Parameter != models.ParamAmpere {
			continue
		}
		key := r.Timestamp.UnixNano()
		g, ok := groups[key]
		if !ok {
			g = &pair{ts: r.Timestamp}
			groups[key] = g
			order = append(order, key)
		}
		if r.Parameter == models.ParamRPM {
			g.rpm, g.hasRPM = r.Value, true
		} else {
			g.ampere, g.hasAmp = r.Value, true
		}
	}

	out := make([]models.PairedPoint, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.hasRPM && g.hasAmp {
			out = append(out, models.PairedPoint{Timestamp: g.ts, RPM: g.rpm, Ampere: g.ampere})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// cutoff returns the earliest accepted timestamp for rangeDays, or the
// zero time when rangeDays does not restrict.
func (e *Engine) cutoff(rangeDays int) time.Time {
	if rangeDays <= 0 {
		return time.Time{}
	}
	return e.now().AddDate(0, 0, -rangeDays)
}

// TrendReadings returns readings of parameter, optionally restricted to one
// vessel and to the last rangeDays days, in ascending order.
func (e *Engine) TrendReadings(parameter, vessel string, rangeDays int) []models.Reading {
	cutoff := e.cutoff(rangeDays)
	var out []models.Reading
	for _, r := range e.src.All() {
		if r.Parameter != parameter {
			continue
		}
		if vessel != "" && r.Vessel != vessel {
			continue
		}
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	sortAscending(out)
	return out
}

// FleetTrend groups the trend readings by vessel and computes statistics
// over all of them.
func (e *Engine) FleetTrend(parameter, vessel string, rangeDays int) models.FleetTrend {
	defer metrics.ObserveQuery("fleet_trend", time.Now())

	readings := e.TrendReadings(parameter, vessel, rangeDays)
	trend := models.FleetTrend{
		Parameter:      parameter,
		Unit:           e.src.Parameter(parameter).Unit,
		SeriesByVessel: make(map[string][]models.TrendPoint),
	}

	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if _, ok := trend.SeriesByVessel[r.Vessel]; !ok {
			trend.Vessels = append(trend.Vessels, r.Vessel)
		}
		trend.SeriesByVessel[r.Vessel] = append(trend.SeriesByVessel[r.Vessel], models.TrendPoint{X: r.Timestamp, Y: r.Value})
		values = append(values, r.Value)
	}
	sort.Strings(trend.Vessels)
	trend.Stats = Describe(values)
	return trend
}

// Describe computes average, extremes and population standard deviation.
// An empty input leaves every statistic nil.
func Describe(values []float64) models.TrendStats {
	stats := models.TrendStats{Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	sum := 0.0
	minimum, maximum := values[0], values[0]
	for _, v := range values {
		sum += v
		minimum = math.Min(minimum, v)
		maximum = math.Max(maximum, v)
	}
	n := float64(len(values))
	average := sum / n

	variance := 0.0
	for _, v := range values {
		variance += (v - average) * (v - average)
	}
	stddev := math.Sqrt(variance / n)

	stats.Average = &average
	stats.Minimum = &minimum
	stats.Maximum = &maximum
	stats.StdDev = &stddev
	return stats
}

// RawReadings returns the readings matching f in insertion order.
func (e *Engine) RawReadings(f models.RawFilter) []models.Reading {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	cutoff := e.cutoff(f.RangeDays)

	var out []models.Reading
	for _, r := range e.src.All() {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Vessel), search) &&
			!strings.Contains(strings.ToLower(r.EquipmentCode), search) &&
			!strings.Contains(strings.ToLower(r.Component), search) &&
			!strings.Contains(strings.ToLower(r.Parameter), search) {
			continue
		}
		if f.Vessel != "" && r.Vessel != f.Vessel {
			continue
		}
		if f.Parameter != "" && r.Parameter != f.Parameter {
			continue
		}
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RawListing returns one page of the matching readings, newest first.
// page is clamped into [1, totalPages]; an empty result still has one page.
func (e *Engine) RawListing(f models.RawFilter, page, pageSize int) models.RawPage {
	defer metrics.ObserveQuery("raw_listing", time.Now())

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	matched := e.RawReadings(f)
	sortDescending(matched)

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	items := []models.Reading{}
	if start < end {
		items = matched[start:end]
	}
	return models.RawPage{
		TotalCount: total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
		Items:      items,
	}
}

type equipmentKey struct {
	vessel        string
	equipmentCode string
	component     string
}

// MissingEquipment lists equipment/components whose newest reading is at
// least thresholdDays old, sorted by sortBy (days, vessel or equipment).
func (e *Engine) MissingEquipment(vessel string, thresholdDays int, sortBy string) []models.MissingEquipment {
	defer metrics.ObserveQuery("missing_equipment", time.Now())

	last := make(map[equipmentKey]time.Time)
	for _, r := range e.src.All() {
		if vessel != "" && r.Vessel != vessel {
			continue
		}
		k := equipmentKey{vessel: r.Vessel, equipmentCode: r.EquipmentCode, component: r.Component}
		if ts, ok := last[k]; !ok || r.Timestamp.After(ts) {
			last[k] = r.Timestamp
		}
	}

	now := e.now()
	out := make([]models.MissingEquipment, 0)
	for k, ts := range last {
		days := DaysBetween(ts, now)
		if days < thresholdDays {
			continue
		}
		out = append(out, models.MissingEquipment{
			Vessel:               k.vessel,
			EquipmentCode:        k.equipmentCode,
			Component:            k.component,
			LastReading:          ts,
			DaysSinceLastReading: days,
			Severity:             models.StalenessSeverity(days),
		})
	}

	// Deterministic base order before the requested sort.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Vessel != b.Vessel {
			return a.Vessel < b.Vessel
		}
		if a.EquipmentCode != b.EquipmentCode {
			return a.EquipmentCode < b.EquipmentCode
		}
		return a.Component < b.Component
	})
	switch sortBy {
	case models.SortByVessel:
		// already ordered
	case models.SortByEquipment:
		sort.SliceStable(out, func(i, j int) bool { return out[i].EquipmentCode < out[j].EquipmentCode })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DaysSinceLastReading > out[j].DaysSinceLastReading })
	}
	return out
}

// DaysBetween returns the whole days elapsed from then to now, floored.
func DaysBetween(then, now time.Time) int {
	return int(math.Floor(float64(now.Sub(then)) / float64(24*time.Hour)))
}
