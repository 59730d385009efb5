// Package store owns the in-memory reading table, its derived
// vocabularies, the relationship index and per-vessel quality counters.
package store

import (
	"sort"
	"sync"

	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/parser"
)

// Store is the single owner of all readings. Writers are ingestion
// batches; readers get copies.
type Store struct {
	mu       sync.RWMutex
	readings []models.Reading

	vessels           valueSet
	equipmentCodes    map[string]valueSet // vessel -> codes
	components        map[string]valueSet // equipment code -> components
	measurementPoints map[string]valueSet // equipment code -> points
	subComponentCodes map[string]valueSet // equipment code -> sub-component codes
	parameterNames    valueSet

	quality map[string]*models.VesselQuality

	index  *RelationshipIndex
	params *ParameterRegistry
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		index:  NewRelationshipIndex(),
		params: NewParameterRegistry(),
	}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.readings = nil
	s.vessels = make(valueSet)
	s.equipmentCodes = make(map[string]valueSet)
	s.components = make(map[string]valueSet)
	s.measurementPoints = make(map[string]valueSet)
	s.subComponentCodes = make(map[string]valueSet)
	s.parameterNames = make(valueSet)
	s.quality = make(map[string]*models.VesselQuality)
}

// Reset clears readings, vocabularies, the relationship index and its cache.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.index.Reset()
	s.params.reset()
}

// Index returns the relationship index.
func (s *Store) Index() *RelationshipIndex {
	return s.index
}

// Parameters returns the parameter registry.
func (s *Store) Parameters() *ParameterRegistry {
	return s.params
}

// Parameter returns metadata for name, or the zero value when unknown.
func (s *Store) Parameter(name string) models.ParameterMetadata {
	meta, _ := s.params.Get(name)
	return meta
}

// Append adds one reading and updates the vocabularies and the
// relationship index.
func (s *Store) Append(r models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(r)
}

func (s *Store) appendLocked(r models.Reading) {
	s.readings = append(s.readings, r)
	s.index.Register(r.Association())
	if r.Vessel != "" {
		s.vessels[r.Vessel] = struct{}{}
	}
	addTo(s.equipmentCodes, r.Vessel, r.EquipmentCode)
	addTo(s.components, r.EquipmentCode, r.Component)
	addTo(s.measurementPoints, r.EquipmentCode, r.MeasurementPoint)
	addTo(s.subComponentCodes, r.EquipmentCode, r.SubComponentCode)
	if r.Parameter != "" {
		s.parameterNames[r.Parameter] = struct{}{}
	}
}

func addTo(m map[string]valueSet, key, value string) {
	if key == "" || value == "" {
		return
	}
	set, ok := m[key]
	if !ok {
		set = make(valueSet)
		m[key] = set
	}
	set[value] = struct{}{}
}

// Ingest normalizes rows for vessel and applies the results: readings are
// appended, relationships registered, quality counters updated.
func (s *Store) Ingest(vessel string, rows []models.Row, n *parser.Normalizer) models.FileSummary {
	n = n.WithRegistry(s.params)

	summary := models.FileSummary{Vessel: vessel, Rows: len(rows)}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quality[vessel]
	if !ok {
		q = &models.VesselQuality{Vessel: vessel}
		s.quality[vessel] = q
	}

	for _, row := range rows {
		res := n.Normalize(row, vessel)
		q.Rows++
		if res.Skipped {
			q.SkippedRows++
			summary.SkippedRows++
			continue
		}
		if res.TimestampDefect {
			q.TimestampDefects++
			summary.TimestampDefects++
		}
		s.index.Register(res.Association)
		for _, r := range res.Readings {
			s.appendLocked(r)
		}
		q.Readings += len(res.Readings)
		summary.Readings += len(res.Readings)
	}
	return summary
}

// All returns a copy of every reading in insertion order.
func (s *Store) All() []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len returns the number of readings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// Vessels returns the distinct vessels, sorted.
func (s *Store) Vessels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.vessels)
}

// EquipmentCodes returns the equipment codes seen on vessel, sorted.
func (s *Store) EquipmentCodes(vessel string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.equipmentCodes[vessel])
}

// Components returns the components seen on an equipment code, sorted.
func (s *Store) Components(equipmentCode string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.components[equipmentCode])
}

// MeasurementPoints returns the measurement points of an equipment code.
func (s *Store) MeasurementPoints(equipmentCode string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.measurementPoints[equipmentCode])
}

// SubComponentCodes returns the sub-component codes of an equipment code.
func (s *Store) SubComponentCodes(equipmentCode string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.subComponentCodes[equipmentCode])
}

// ParameterNames returns the distinct parameters present in the readings.
func (s *Store) ParameterNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.parameterNames)
}

// Quality returns per-vessel quality counters with scores, sorted by vessel.
func (s *Store) Quality() []models.VesselQuality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VesselQuality, 0, len(s.quality))
	for _, q := range s.quality {
		c := *q
		c.ComputeScore()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vessel < out[j].Vessel })
	return out
}

func sortedKeys(set valueSet) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func groupedLists(m map[string]valueSet) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, set := range m {
		out[k] = sortedKeys(set)
	}
	return out
}
