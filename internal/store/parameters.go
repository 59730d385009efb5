package store

import (
	"sort"
	"sync"

	"vessel-cbm-monitor/internal/models"
)

// ParameterRegistry holds parameter metadata: the built-in table plus
// parameters discovered during ingestion.
type ParameterRegistry struct {
	mu     sync.RWMutex
	params map[string]models.ParameterMetadata
}

// NewParameterRegistry returns a registry seeded with the built-in table.
func NewParameterRegistry() *ParameterRegistry {
	return &ParameterRegistry{params: models.BuiltinParameters()}
}

// Register adds name with an empty unit and no thresholds unless known.
func (r *ParameterRegistry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.params[name]; !ok {
		r.params[name] = models.ParameterMetadata{}
	}
}

// Set stores explicit metadata for name.
func (r *ParameterRegistry) Set(name string, meta models.ParameterMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[name] = meta
}

// Get returns the metadata for name; unknown names yield the zero value.
func (r *ParameterRegistry) Get(name string) (models.ParameterMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.params[name]
	return meta, ok
}

// Names lists every known parameter, sorted.
func (r *ParameterRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the registry.
func (r *ParameterRegistry) All() map[string]models.ParameterMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.ParameterMetadata, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

func (r *ParameterRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = models.BuiltinParameters()
}
