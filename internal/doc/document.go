package doc

import (
	"fmt"
	"reflect"
)

// Document is a dynamic, map-bodied document for callers that have no
// compiled-in Go type for a document, primarily the CLI, which builds its
// mappings from definition files at runtime.
type Document struct {
	// Type is the document type key; it selects the mapping.
	Type string `json:"-"`

	// ID is the document key. Empty means unassigned.
	ID string `json:"-"`

	// Body is the document content persisted as the row body.
	Body map[string]any `json:"body"`
}

// DynamicMapping builds a mapping whose instances are *Document values.
// Dispatch for *Document goes through the Type field rather than the Go
// type, since every dynamic mapping shares it.
func DynamicMapping(typeKey, table string, ids IDSource) *Mapping {
	m, err := NewMapping(typeKey, table, MappingConfig{
		IDs: ids,
		IdentityOf: func(instance any) (string, bool, error) {
			d, ok := instance.(*Document)
			if !ok {
				return "", false, fmt.Errorf("expected *doc.Document, got %T", instance)
			}
			if d.ID == "" {
				return "", false, nil
			}
			return d.ID, true, nil
		},
		AssignKey: func(instance any, key string) error {
			d, ok := instance.(*Document)
			if !ok {
				return fmt.Errorf("expected *doc.Document, got %T", instance)
			}
			d.ID = key
			return nil
		},
		New: func() any {
			return &Document{Type: typeKey, Body: map[string]any{}}
		},
	})
	if err != nil {
		// Unreachable: all closures are supplied above.
		panic(err)
	}
	return m
}

// StructMapping builds a mapping for a concrete pointer-to-struct document
// type using field-accessor closures, and registers the pointer type for
// dispatch.
func StructMapping(typeKey, table string, prototype any, cfg MappingConfig) (*Mapping, error) {
	if prototype == nil {
		return nil, fmt.Errorf("mapping %q: nil prototype", typeKey)
	}
	t := reflect.TypeOf(prototype)
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("mapping %q: prototype must be a pointer to struct, got %T", typeKey, prototype)
	}
	cfg.GoType = t
	if cfg.New == nil {
		elem := t.Elem()
		cfg.New = func() any { return reflect.New(elem).Interface() }
	}
	return NewMapping(typeKey, table, cfg)
}
