package session

import (
	"bytes"
	"log/slog"
	"reflect"
	"sort"

	"github.com/stratadb/strata/internal/codec"
	"github.com/stratadb/strata/internal/doc"
)

// IdentityMap is the per-session cache enforcing one live instance per
// document identity. Entries are owned by the session for its lifetime and
// never shared across sessions.
//
// When change tracking is enabled the map doubles as the document tracker:
// it snapshots the serialized form of each instance at load/store time and
// DetectChanges reports instances whose current serialization differs.
//
// INVARIANTS:
//   - Repeated Get for one identity returns the same instance reference.
//   - DetectChanges never mutates the map.
type IdentityMap struct {
	docs      map[doc.Identity]any
	snapshots map[doc.Identity][]byte
	tracking  bool
	ser       codec.Serializer
	log       *slog.Logger
}

// TrackedChange is one tracker-detected in-place mutation.
type TrackedChange struct {
	ID       doc.Identity
	Document any
}

// NewIdentityMap creates an identity map. With tracking enabled it
// snapshots instances as they are registered.
func NewIdentityMap(ser codec.Serializer, tracking bool, log *slog.Logger) *IdentityMap {
	m := &IdentityMap{
		docs:     make(map[doc.Identity]any),
		tracking: tracking,
		ser:      ser,
		log:      log,
	}
	if tracking {
		m.snapshots = make(map[doc.Identity][]byte)
	}
	return m
}

// Get returns the live instance for id, if any.
func (m *IdentityMap) Get(id doc.Identity) (any, bool) {
	instance, ok := m.docs[id]
	return instance, ok
}

// Len returns the number of live entries.
func (m *IdentityMap) Len() int {
	return len(m.docs)
}

// Set registers an instance under id, replacing any previous entry.
// Storing a different instance under an existing identity is last-write-
// wins; it usually signals identity reuse across distinct logical
// entities, so it is logged at warn level rather than rejected.
func (m *IdentityMap) Set(id doc.Identity, instance any) {
	if prev, ok := m.docs[id]; ok && !sameInstance(prev, instance) {
		m.log.Warn("identity map entry replaced by different instance",
			"doc", id.String())
	}
	m.docs[id] = instance
	if m.tracking {
		m.refreshSnapshot(id, instance)
	}
}

// Evict removes the entry for id, along with its tracker snapshot.
func (m *IdentityMap) Evict(id doc.Identity) {
	delete(m.docs, id)
	if m.tracking {
		delete(m.snapshots, id)
	}
}

// DetectChanges enumerates instances whose serialized form differs from
// the snapshot taken when they were registered. Returns nil when tracking
// is not configured. Results are ordered by identity for determinism.
//
// Instances that fail to serialize are skipped here; the explicit Store
// path reports serialization failures at commit time.
func (m *IdentityMap) DetectChanges() []TrackedChange {
	if !m.tracking {
		return nil
	}
	var changed []TrackedChange
	for id, snapshot := range m.snapshots {
		instance, ok := m.docs[id]
		if !ok {
			continue
		}
		current, err := m.ser.Marshal(instance)
		if err != nil {
			m.log.Warn("change tracking skipped document", "doc", id.String(), "error", err)
			continue
		}
		if !bytes.Equal(current, snapshot) {
			changed = append(changed, TrackedChange{ID: id, Document: instance})
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		return changed[i].ID.String() < changed[j].ID.String()
	})
	return changed
}

// RefreshSnapshots re-snapshots the given identities after a successful
// commit so their persisted state becomes the new clean baseline.
func (m *IdentityMap) RefreshSnapshots(ids []doc.Identity) {
	if !m.tracking {
		return
	}
	for _, id := range ids {
		if instance, ok := m.docs[id]; ok {
			m.refreshSnapshot(id, instance)
		}
	}
}

// sameInstance compares two stored instances without panicking on
// non-comparable dynamic types. Documents are pointers in practice, but
// nothing in the API forbids value types.
func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (m *IdentityMap) refreshSnapshot(id doc.Identity, instance any) {
	data, err := m.ser.Marshal(instance)
	if err != nil {
		// Leave the stale snapshot in place; the commit path will report
		// the serialization failure for this document.
		m.log.Warn("snapshot failed", "doc", id.String(), "error", err)
		return
	}
	m.snapshots[id] = data
}
