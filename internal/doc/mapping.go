package doc

import (
	"fmt"
	"reflect"
)

// Cache is the identity-map surface a mapping manipulates. The concrete
// implementation lives in the session package; mappings only ever set and
// evict entries, never enumerate them.
type Cache interface {
	Set(id Identity, instance any)
	Evict(id Identity)
}

// MappingConfig supplies the per-type closures a Mapping is built from.
// The closures are the capability lookup for heterogeneous dispatch: the
// registry maps a type key (or registered Go type) to these functions, so
// no dispatch code is generated at runtime.
type MappingConfig struct {
	// GoType, when set, registers the mapping for dispatch by the dynamic
	// Go type of instances passed to Session.Store. Usually the pointer
	// type of the document struct.
	GoType reflect.Type

	// IdentityOf extracts the document key. ok=false means the key is
	// unset and must be assigned.
	IdentityOf func(instance any) (key string, ok bool, err error)

	// AssignKey writes a key onto the instance. Used both for generated
	// keys on first Store and to stamp the key after a load.
	AssignKey func(instance any, key string) error

	// New returns a fresh zero instance for the load path.
	New func() any

	// IDs overrides the key source. Defaults to UUIDv7Source.
	IDs IDSource
}

// Mapping is the storage descriptor for one document type: table mapping,
// key extraction/assignment, and the identity-map operations keyed by it.
// Mappings are immutable after construction and safely shared across
// sessions.
type Mapping struct {
	typeKey string
	table   string
	goType  reflect.Type

	identityOf func(any) (string, bool, error)
	assignKey  func(any, string) error
	newDoc     func() any
	ids        IDSource
}

// NewMapping builds the metadata for one document type.
func NewMapping(typeKey, table string, cfg MappingConfig) (*Mapping, error) {
	if typeKey == "" {
		return nil, fmt.Errorf("mapping: empty type key")
	}
	if table == "" {
		return nil, fmt.Errorf("mapping %q: empty table", typeKey)
	}
	if cfg.IdentityOf == nil {
		return nil, fmt.Errorf("mapping %q: IdentityOf is required", typeKey)
	}
	if cfg.AssignKey == nil {
		return nil, fmt.Errorf("mapping %q: AssignKey is required", typeKey)
	}
	ids := cfg.IDs
	if ids == nil {
		ids = UUIDv7Source{}
	}
	return &Mapping{
		typeKey:    typeKey,
		table:      table,
		goType:     cfg.GoType,
		identityOf: cfg.IdentityOf,
		assignKey:  cfg.AssignKey,
		newDoc:     cfg.New,
		ids:        ids,
	}, nil
}

// TypeKey returns the registered document type key.
func (m *Mapping) TypeKey() string { return m.typeKey }

// Table returns the table documents of this type are stored in.
func (m *Mapping) Table() string { return m.table }

// Identity extracts the identity of an instance. ok=false means the key
// is unset (a new document awaiting assignment).
func (m *Mapping) Identity(instance any) (id Identity, ok bool, err error) {
	key, ok, err := m.identityOf(instance)
	if err != nil {
		return Identity{}, false, fmt.Errorf("mapping %q: extract key: %w", m.typeKey, err)
	}
	if !ok {
		return Identity{}, false, nil
	}
	return Identity{Type: m.typeKey, Key: key}, true, nil
}

// Assign generates a key, writes it onto the instance, and returns the
// resulting identity. The instance is untouched when assignment fails.
func (m *Mapping) Assign(instance any) (Identity, error) {
	key := m.ids.NewID()
	if err := m.assignKey(instance, key); err != nil {
		return Identity{}, fmt.Errorf("mapping %q: assign key: %w", m.typeKey, err)
	}
	return Identity{Type: m.typeKey, Key: key}, nil
}

// SetKey stamps a known key onto an instance (load path).
func (m *Mapping) SetKey(instance any, key string) error {
	return m.assignKey(instance, key)
}

// NewInstance returns a fresh zero document for deserialization, or nil
// when the mapping has no factory (dispatch-only registrations).
func (m *Mapping) NewInstance() any {
	if m.newDoc == nil {
		return nil
	}
	return m.newDoc()
}

// Store registers an instance in the identity map under id.
func (m *Mapping) Store(c Cache, id Identity, instance any) {
	c.Set(id, instance)
}

// Remove evicts the entry keyed by the instance's own identity.
// No-op when the instance has no key yet.
func (m *Mapping) Remove(c Cache, instance any) error {
	id, ok, err := m.Identity(instance)
	if err != nil {
		return err
	}
	if ok {
		c.Evict(id)
	}
	return nil
}

// Delete evicts the entry for id.
func (m *Mapping) Delete(c Cache, id Identity) {
	c.Evict(id)
}
