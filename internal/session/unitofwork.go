package session

import (
	"github.com/stratadb/strata/internal/doc"
)

// ChangeKind tags a pending change.
type ChangeKind uint8

const (
	// ChangeInsert persists a document known not to pre-exist.
	ChangeInsert ChangeKind = iota + 1
	// ChangeUpdate persists a document that pre-exists (or may).
	ChangeUpdate
	// ChangeDelete removes a document's row.
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// PendingChange is one resolved persistence operation.
type PendingChange struct {
	Kind     ChangeKind
	ID       doc.Identity
	Table    string
	Document any // nil for deletes
}

// UnitOfWork accumulates Store/Delete intents for a session and resolves
// them into the concrete operation set at save time.
//
// INVARIANTS:
//   - At most one pending change per identity (intents collapse).
//   - The set is cleared only by a successful commit; a failed save leaves
//     it untouched so a retry reproduces the identical operation set.
//   - Recorded order among distinct identities is preserved for
//     deterministic command traces; the spec allows free reordering there,
//     so keeping first-recorded order is the stricter choice.
type UnitOfWork struct {
	pending map[doc.Identity]*PendingChange
	order   []doc.Identity
}

// NewUnitOfWork creates an empty unit of work.
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{pending: make(map[doc.Identity]*PendingChange)}
}

// Len returns the number of pending changes.
func (w *UnitOfWork) Len() int {
	return len(w.pending)
}

// Has reports whether an intent is pending for id.
func (w *UnitOfWork) Has(id doc.Identity) bool {
	_, ok := w.pending[id]
	return ok
}

// RecordStore records an upsert intent. knownToExist selects Update over
// Insert for documents the session loaded from the store. Storing the same
// identity again collapses onto the existing entry; storing after a
// pending delete degrades to an Update, since the delete never ran and the
// row still exists.
func (w *UnitOfWork) RecordStore(id doc.Identity, table string, document any, knownToExist bool) {
	if p, ok := w.pending[id]; ok {
		if p.Kind == ChangeDelete {
			p.Kind = ChangeUpdate
		}
		p.Document = document
		return
	}
	kind := ChangeInsert
	if knownToExist {
		kind = ChangeUpdate
	}
	w.pending[id] = &PendingChange{Kind: kind, ID: id, Table: table, Document: document}
	w.order = append(w.order, id)
}

// RecordDelete records a delete intent. Deleting an identity whose pending
// change is a same-session Insert cancels the insert entirely: the row
// never existed, so no delete is issued (dropped=true). A pending Update
// becomes a Delete in place.
func (w *UnitOfWork) RecordDelete(id doc.Identity, table string) (dropped bool) {
	if p, ok := w.pending[id]; ok {
		if p.Kind == ChangeInsert {
			delete(w.pending, id)
			w.dropFromOrder(id)
			return true
		}
		p.Kind = ChangeDelete
		p.Document = nil
		return false
	}
	w.pending[id] = &PendingChange{Kind: ChangeDelete, ID: id, Table: table}
	w.order = append(w.order, id)
	return false
}

// Resolve produces the final operation set: explicit pending changes
// followed by tracker-detected updates. Explicit intent takes precedence:
// a tracked identity that already has a pending change is skipped.
// Resolve does not consume the pending set; Clear does, after a successful
// commit.
func (w *UnitOfWork) Resolve(tracked []PendingChange) []PendingChange {
	ops := make([]PendingChange, 0, len(w.order)+len(tracked))
	for _, id := range w.order {
		ops = append(ops, *w.pending[id])
	}
	for _, t := range tracked {
		if w.Has(t.ID) {
			continue
		}
		ops = append(ops, t)
	}
	return ops
}

// Clear empties the pending set after a successful commit.
func (w *UnitOfWork) Clear() {
	w.pending = make(map[doc.Identity]*PendingChange)
	w.order = w.order[:0]
}

func (w *UnitOfWork) dropFromOrder(id doc.Identity) {
	for i, other := range w.order {
		if other == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			return
		}
	}
}
