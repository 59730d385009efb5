package store

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"vessel-cbm-monitor/internal/models"
)

type valueSet map[string]struct{}

// Relationships is the serializable form of the index:
// dimension -> value -> other dimension -> associated values.
type Relationships map[models.Dimension]map[string]map[models.Dimension][]string

type cacheKey struct {
	target      models.Dimension
	changed     models.Dimension
	constraints string
}

// RelationshipIndex links every value of each dimension to the values of
// the other dimensions it was observed with. Links are symmetric.
type RelationshipIndex struct {
	mu    sync.Mutex
	links map[models.Dimension]map[string]map[models.Dimension]valueSet
	cache map[cacheKey][]string
}

// NewRelationshipIndex returns an empty index.
func NewRelationshipIndex() *RelationshipIndex {
	x := &RelationshipIndex{}
	x.resetLocked()
	return x
}

func (x *RelationshipIndex) resetLocked() {
	x.links = make(map[models.Dimension]map[string]map[models.Dimension]valueSet, len(models.Dimensions))
	for _, d := range models.Dimensions {
		x.links[d] = make(map[string]map[models.Dimension]valueSet)
	}
	x.cache = make(map[cacheKey][]string)
}

// Reset drops every association and the options cache.
func (x *RelationshipIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.resetLocked()
}

// Register records every pairwise association between the non-empty
// dimensions of a. It reports whether anything new was added; the options
// cache is cleared when it was.
func (x *RelationshipIndex) Register(a models.Association) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	added := false
	for i, d := range models.Dimensions {
		v := a.Value(d)
		if v == "" {
			continue
		}
		if x.ensure(d, v) {
			added = true
		}
		for _, other := range models.Dimensions[i+1:] {
			ov := a.Value(other)
			if ov == "" {
				continue
			}
			if x.link(d, v, other, ov) {
				added = true
			}
			if x.link(other, ov, d, v) {
				added = true
			}
		}
	}
	if added && len(x.cache) > 0 {
		x.cache = make(map[cacheKey][]string)
	}
	return added
}

func (x *RelationshipIndex) ensure(d models.Dimension, v string) bool {
	if _, ok := x.links[d][v]; ok {
		return false
	}
	x.links[d][v] = make(map[models.Dimension]valueSet)
	return true
}

func (x *RelationshipIndex) link(d models.Dimension, v string, other models.Dimension, ov string) bool {
	x.ensure(d, v)
	set, ok := x.links[d][v][other]
	if !ok {
		set = make(valueSet)
		x.links[d][v][other] = set
	}
	if _, ok := set[ov]; ok {
		return false
	}
	set[ov] = struct{}{}
	return true
}

// OptionsFor returns the sorted values of target that are consistent with
// every constraint. Constraints with an empty value are ignored. With two
// or more constraints the result is the intersection of each constraint's
// own associations, so it does not depend on selection order.
func (x *RelationshipIndex) OptionsFor(target models.Dimension, constraints map[models.Dimension]string) []string {
	return x.OptionsForChange(target, constraints, "")
}

// OptionsForChange is OptionsFor with the last-changed filter folded into
// the cache key.
func (x *RelationshipIndex) OptionsForChange(target models.Dimension, constraints map[models.Dimension]string, changed models.Dimension) []string {
	active := make([]models.Dimension, 0, len(constraints))
	for d, v := range constraints {
		if v != "" {
			active = append(active, d)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })

	var b strings.Builder
	for _, d := range active {
		b.WriteString(string(d))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(constraints[d]))
		b.WriteByte(';')
	}
	key := cacheKey{target: target, changed: changed, constraints: b.String()}

	x.mu.Lock()
	defer x.mu.Unlock()

	if cached, ok := x.cache[key]; ok {
		return append([]string(nil), cached...)
	}

	var result valueSet
	if len(active) == 0 {
		result = make(valueSet, len(x.links[target]))
		for v := range x.links[target] {
			result[v] = struct{}{}
		}
	} else {
		for i, d := range active {
			candidates := x.associated(d, constraints[d], target)
			if i == 0 {
				result = candidates
				continue
			}
			result = intersect(result, candidates)
		}
	}

	options := make([]string, 0, len(result))
	for v := range result {
		options = append(options, v)
	}
	sort.Strings(options)
	x.cache[key] = options
	return append([]string(nil), options...)
}

// associated returns the values of target linked to value in dimension d.
func (x *RelationshipIndex) associated(d models.Dimension, value string, target models.Dimension) valueSet {
	entry, ok := x.links[d][value]
	if !ok {
		return valueSet{}
	}
	if d == target {
		return valueSet{value: {}}
	}
	out := make(valueSet, len(entry[target]))
	for v := range entry[target] {
		out[v] = struct{}{}
	}
	return out
}

func intersect(a, b valueSet) valueSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(valueSet, len(a))
	for v := range a {
		if _, ok := b[v]; ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// CacheSize reports the number of memoized option lists.
func (x *RelationshipIndex) CacheSize() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.cache)
}

// Export returns a sorted, serializable copy of the index.
func (x *RelationshipIndex) Export() Relationships {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make(Relationships, len(x.links))
	for d, values := range x.links {
		dm := make(map[string]map[models.Dimension][]string, len(values))
		for v, others := range values {
			om := make(map[models.Dimension][]string, len(others))
			for od, set := range others {
				list := make([]string, 0, len(set))
				for ov := range set {
					list = append(list, ov)
				}
				sort.Strings(list)
				om[od] = list
			}
			dm[v] = om
		}
		out[d] = dm
	}
	return out
}

// Import replaces the index with rel. Links are inserted in both
// directions so a one-sided payload still yields a symmetric index.
func (x *RelationshipIndex) Import(rel Relationships) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.resetLocked()
	for d, values := range rel {
		if _, ok := x.links[d]; !ok {
			continue
		}
		for v, others := range values {
			if v == "" {
				continue
			}
			x.ensure(d, v)
			for od, list := range others {
				if _, ok := x.links[od]; !ok || od == d {
					continue
				}
				for _, ov := range list {
					if ov == "" {
						continue
					}
					x.link(d, v, od, ov)
					x.link(od, ov, d, v)
				}
			}
		}
	}
}
