package store

import (
	"vessel-cbm-monitor/internal/models"
)

// State is the persisted layout of the store.
type State struct {
	Vessels           []string                            `json:"vessels"`
	EquipmentCodes    map[string][]string                 `json:"equipmentCodes"`
	Components        map[string][]string                 `json:"components"`
	MeasurementPoints map[string][]string                 `json:"measurementPoints"`
	SubComponentCodes map[string][]string                 `json:"subComponentCodes"`
	Readings          []models.Reading                    `json:"readings"`
	Relationships     Relationships                       `json:"relationships"`
	Parameters        map[string]models.ParameterMetadata `json:"parameters,omitempty"`
	Quality           []models.VesselQuality              `json:"quality,omitempty"`
}

// Snapshot captures the serializable subset of the store.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	readings := make([]models.Reading, len(s.readings))
	copy(readings, s.readings)
	st := State{
		Vessels:           sortedKeys(s.vessels),
		EquipmentCodes:    groupedLists(s.equipmentCodes),
		Components:        groupedLists(s.components),
		MeasurementPoints: groupedLists(s.measurementPoints),
		SubComponentCodes: groupedLists(s.subComponentCodes),
		Readings:          readings,
	}
	s.mu.RUnlock()

	st.Quality = s.Quality()
	st.Relationships = s.index.Export()
	st.Parameters = s.params.All()
	return st
}

// Restore replaces the store contents with st. Vocabularies are rebuilt
// from the readings. The relationship index is the union of the payload's
// relationships and the associations of the readings, so a missing or
// empty payload index is rebuilt.
func (s *Store) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.params.reset()
	s.index.Import(st.Relationships)
	for name, meta := range st.Parameters {
		s.params.Set(name, meta)
	}
	for _, r := range st.Readings {
		s.appendLocked(r)
		s.params.Register(r.Parameter)
	}
	for _, q := range st.Quality {
		c := q
		s.quality[q.Vessel] = &c
	}
}
