package doc

import (
	"fmt"
	"reflect"
	"sort"
)

// Registry is the process-wide set of document mappings. It is built once
// at startup, frozen by convention, and shared read-only across sessions.
//
// INVARIANTS:
//   - One mapping per type key.
//   - One mapping per registered Go type.
//   - Registration order never affects behavior; All() is sorted.
type Registry struct {
	byKey  map[string]*Mapping
	byType map[reflect.Type]*Mapping
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:  make(map[string]*Mapping),
		byType: make(map[reflect.Type]*Mapping),
	}
}

// Register adds a mapping. Duplicate type keys or Go types are rejected.
func (r *Registry) Register(m *Mapping) error {
	if _, exists := r.byKey[m.typeKey]; exists {
		return fmt.Errorf("registry: duplicate mapping for type %q", m.typeKey)
	}
	if m.goType != nil {
		if prev, exists := r.byType[m.goType]; exists {
			return fmt.Errorf("registry: Go type %v already mapped to %q", m.goType, prev.typeKey)
		}
	}
	r.byKey[m.typeKey] = m
	if m.goType != nil {
		r.byType[m.goType] = m
	}
	return nil
}

// ByKey looks a mapping up by document type key.
func (r *Registry) ByKey(typeKey string) (*Mapping, bool) {
	m, ok := r.byKey[typeKey]
	return m, ok
}

// MappingFor resolves the mapping for an instance. *Document instances
// dispatch on their Type field; everything else dispatches on the dynamic
// Go type registered with the mapping.
func (r *Registry) MappingFor(instance any) (*Mapping, error) {
	if instance == nil {
		return nil, fmt.Errorf("registry: nil instance")
	}
	if d, ok := instance.(*Document); ok {
		m, found := r.byKey[d.Type]
		if !found {
			return nil, fmt.Errorf("registry: no mapping for document type %q", d.Type)
		}
		return m, nil
	}
	t := reflect.TypeOf(instance)
	m, found := r.byType[t]
	if !found {
		return nil, fmt.Errorf("registry: no mapping for Go type %v", t)
	}
	return m, nil
}

// All returns every mapping sorted by type key, for deterministic schema
// generation.
func (r *Registry) All() []*Mapping {
	out := make([]*Mapping, 0, len(r.byKey))
	for _, m := range r.byKey {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].typeKey < out[j].typeKey })
	return out
}
