// Package testutil provides the fixture document types and store helpers
// shared by engine tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/store"
)

// Widget is the scratch document type used across engine tests.
type Widget struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Gadget is a second document type for heterogeneous-dispatch tests.
type Gadget struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
}

// WidgetMapping builds the widget mapping. ids may be nil for UUIDv7.
func WidgetMapping(t *testing.T, ids doc.IDSource) *doc.Mapping {
	t.Helper()
	m, err := doc.StructMapping("widget", "widgets", &Widget{}, doc.MappingConfig{
		IDs: ids,
		IdentityOf: func(instance any) (string, bool, error) {
			w, ok := instance.(*Widget)
			if !ok {
				return "", false, fmt.Errorf("expected *Widget, got %T", instance)
			}
			return w.ID, w.ID != "", nil
		},
		AssignKey: func(instance any, key string) error {
			instance.(*Widget).ID = key
			return nil
		},
	})
	if err != nil {
		t.Fatalf("widget mapping: %v", err)
	}
	return m
}

// GadgetMapping builds the gadget mapping.
func GadgetMapping(t *testing.T, ids doc.IDSource) *doc.Mapping {
	t.Helper()
	m, err := doc.StructMapping("gadget", "gadgets", &Gadget{}, doc.MappingConfig{
		IDs: ids,
		IdentityOf: func(instance any) (string, bool, error) {
			g, ok := instance.(*Gadget)
			if !ok {
				return "", false, fmt.Errorf("expected *Gadget, got %T", instance)
			}
			return g.ID, g.ID != "", nil
		},
		AssignKey: func(instance any, key string) error {
			instance.(*Gadget).ID = key
			return nil
		},
	})
	if err != nil {
		t.Fatalf("gadget mapping: %v", err)
	}
	return m
}

// NewRegistry builds a registry holding the given mappings.
func NewRegistry(t *testing.T, mappings ...*doc.Mapping) *doc.Registry {
	t.Helper()
	reg := doc.NewRegistry()
	for _, m := range mappings {
		if err := reg.Register(m); err != nil {
			t.Fatalf("register %s: %v", m.TypeKey(), err)
		}
	}
	return reg
}

// OpenStore opens a scratch SQLite store with the registry's schema
// applied, closed automatically at test cleanup.
func OpenStore(t *testing.T, reg *doc.Registry) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(reg); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return st
}

// CountRows returns the number of rows in table for the tenant.
func CountRows(t *testing.T, st *store.Store, table, tenant string) int {
	t.Helper()
	var n int
	err := st.DB().QueryRow(
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", table), tenant).Scan(&n)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
