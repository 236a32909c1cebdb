package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stratadb/strata/internal/codec"
	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/store"
)

// DefaultTenant scopes rows when no tenant is configured. Every command
// binds the tenant parameter either way, so single-tenant deployments run
// the same code path.
const DefaultTenant = "default"

// Options configures a session.
type Options struct {
	// Tenant is the active tenant identifier, immutable for the session's
	// lifetime. Empty selects DefaultTenant.
	Tenant string

	// BatchSize bounds commands per commit batch. <= 0 selects
	// DefaultBatchSize.
	BatchSize int

	// TrackChanges enables dirty detection of loaded instances mutated in
	// place without an explicit Store.
	TrackChanges bool

	// Serializer overrides the row-body codec. Defaults to
	// codec.Canonical.
	Serializer codec.Serializer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// CommandObserver, when set, receives every command the pipeline
	// executes. Used by the scenario harness.
	CommandObserver CommandObserver
}

// Session is the composition root: it owns the identity map, the unit of
// work, and a dedicated managed connection for its lifetime, and it
// orchestrates listeners, change resolution, and the transactional commit.
//
// Thread-safety model: one logical flow of control at a time. Store and
// Delete are always synchronous and in-memory; only SaveChangesContext
// touches the database.
type Session struct {
	registry  *doc.Registry
	conn      *store.ManagedConn
	identity  *IdentityMap
	work      *UnitOfWork
	pipeline  *Pipeline
	listeners []Listener
	ser       codec.Serializer
	tenant    string
	log       *slog.Logger

	// loaded marks identities read from the store this session, which is
	// what classifies a Store as Update rather than Insert and a Delete
	// as targeting a pre-existing row.
	loaded map[doc.Identity]bool
}

// New opens a session against the store. Listeners are invoked in the
// given order on every save. Close releases the dedicated connection.
func New(ctx context.Context, st *store.Store, registry *doc.Registry, opts Options, listeners ...Listener) (*Session, error) {
	if registry == nil {
		return nil, fmt.Errorf("session: nil registry")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ser := opts.Serializer
	if ser == nil {
		ser = codec.Canonical{}
	}
	tenant := opts.Tenant
	if tenant == "" {
		tenant = DefaultTenant
	}

	conn, err := st.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	pipeline := NewPipeline(opts.BatchSize, ser, logger)
	if opts.CommandObserver != nil {
		pipeline.SetObserver(opts.CommandObserver)
	}

	return &Session{
		registry:  registry,
		conn:      conn,
		identity:  NewIdentityMap(ser, opts.TrackChanges, logger),
		work:      NewUnitOfWork(),
		pipeline:  pipeline,
		listeners: listeners,
		ser:       ser,
		tenant:    tenant,
		log:       logger,
		loaded:    make(map[doc.Identity]bool),
	}, nil
}

// Close releases the session's connection, rolling back any transaction
// left open by a failed save.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Tenant returns the session's tenant identifier.
func (s *Session) Tenant() string {
	return s.tenant
}

// PendingCount returns the number of pending changes.
func (s *Session) PendingCount() int {
	return s.work.Len()
}

// Cached returns the identity-map entry for a typed key, if present.
func (s *Session) Cached(typeKey, key string) (any, bool) {
	return s.identity.Get(doc.Identity{Type: typeKey, Key: key})
}

// Store records upsert intents for the given instances. Each instance is
// resolved to its mapping, given a generated key when unset, registered in
// the identity map, and recorded in the unit of work, atomically per
// instance from the session's perspective. A nil instance is an argument
// error and nothing is recorded for it.
func (s *Session) Store(instances ...any) error {
	for _, instance := range instances {
		if instance == nil {
			return newEngineError(ErrCodeNilDocument, doc.Identity{}, "nil instance passed to Store", nil)
		}
		if err := s.storeOne(instance); err != nil {
			return err
		}
	}
	return nil
}

// StoreObjects is the heterogeneous entry point: inputs are dispatched by
// runtime type through the registry, and nil inputs are silently skipped.
func (s *Session) StoreObjects(instances []any) error {
	for _, instance := range instances {
		if instance == nil {
			continue
		}
		if err := s.storeOne(instance); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) storeOne(instance any) error {
	m, err := s.registry.MappingFor(instance)
	if err != nil {
		return newEngineError(ErrCodeUnknownType, doc.Identity{}, "resolve mapping", err)
	}
	id, ok, err := m.Identity(instance)
	if err != nil {
		return newEngineError(ErrCodeAssignFailed, doc.Identity{}, "extract key", err)
	}
	if !ok {
		// Assignment happens before anything is recorded, so a failure
		// leaves both the identity map and the unit of work untouched.
		id, err = m.Assign(instance)
		if err != nil {
			return newEngineError(ErrCodeAssignFailed, doc.Identity{}, "assign key", err)
		}
	}
	m.Store(s.identity, id, instance)
	s.work.RecordStore(id, m.Table(), instance, s.loaded[id])
	s.log.Debug("store recorded", "doc", id.String())
	return nil
}

// Delete records a delete intent keyed by the instance's own identity and
// removes it from the identity map. An instance without a key is an
// argument error.
func (s *Session) Delete(instance any) error {
	if instance == nil {
		return newEngineError(ErrCodeNilDocument, doc.Identity{}, "nil instance passed to Delete", nil)
	}
	m, err := s.registry.MappingFor(instance)
	if err != nil {
		return newEngineError(ErrCodeUnknownType, doc.Identity{}, "resolve mapping", err)
	}
	id, ok, err := m.Identity(instance)
	if err != nil {
		return newEngineError(ErrCodeAssignFailed, doc.Identity{}, "extract key", err)
	}
	if !ok {
		return newEngineError(ErrCodeNilDocument, doc.Identity{}, "instance has no key", nil)
	}
	if err := m.Remove(s.identity, instance); err != nil {
		return newEngineError(ErrCodeAssignFailed, id, "remove from identity map", err)
	}
	s.recordDelete(id, m.Table())
	return nil
}

// DeleteByKey records a delete intent for a typed key.
func (s *Session) DeleteByKey(typeKey, key string) error {
	if key == "" {
		return newEngineError(ErrCodeNilDocument, doc.Identity{}, "empty key passed to DeleteByKey", nil)
	}
	m, ok := s.registry.ByKey(typeKey)
	if !ok {
		return newEngineError(ErrCodeUnknownType, doc.Identity{}, fmt.Sprintf("no mapping for type %q", typeKey), nil)
	}
	return s.deleteByIdentity(m, doc.Identity{Type: typeKey, Key: key})
}

func (s *Session) deleteByIdentity(m *doc.Mapping, id doc.Identity) error {
	m.Delete(s.identity, id)
	s.recordDelete(id, m.Table())
	return nil
}

func (s *Session) recordDelete(id doc.Identity, table string) {
	dropped := s.work.RecordDelete(id, table)
	if dropped {
		s.log.Debug("delete cancelled same-session insert", "doc", id.String())
	} else {
		s.log.Debug("delete recorded", "doc", id.String())
	}
}

// Load returns the live instance for a typed key. An identity-map hit
// returns the same instance reference as every previous load; a miss reads
// the tenant-scoped row, deserializes it, and registers the instance.
// found=false means no row exists.
func (s *Session) Load(ctx context.Context, typeKey, key string) (any, bool, error) {
	m, ok := s.registry.ByKey(typeKey)
	if !ok {
		return nil, false, newEngineError(ErrCodeUnknownType, doc.Identity{}, fmt.Sprintf("no mapping for type %q", typeKey), nil)
	}
	id := doc.Identity{Type: typeKey, Key: key}
	if instance, hit := s.identity.Get(id); hit {
		return instance, true, nil
	}

	body, found, err := store.LoadRow(ctx, s.conn, m.Table(), key, s.tenant)
	if err != nil {
		return nil, false, fmt.Errorf("session: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	instance := m.NewInstance()
	if instance == nil {
		return nil, false, fmt.Errorf("session: mapping %q has no instance factory", typeKey)
	}
	if err := s.ser.Unmarshal(body, instance); err != nil {
		return nil, false, newEngineError(ErrCodeSerializeFailed, id, "deserialize row", err)
	}
	if err := m.SetKey(instance, key); err != nil {
		return nil, false, newEngineError(ErrCodeAssignFailed, id, "stamp key after load", err)
	}

	m.Store(s.identity, id, instance)
	s.loaded[id] = true
	return instance, true, nil
}

// SaveChanges commits all pending changes synchronously.
func (s *Session) SaveChanges() error {
	return s.SaveChangesContext(context.Background())
}

// SaveChangesContext commits all pending changes. One phase sequence
// serves both entry points:
//
//	before listeners → resolve → commit → after listeners
//
// Cancellation is honored at each listener invocation and before the
// commit begins; once the commit has started it runs to its own outcome.
// A failure at any phase before the commit leaves the pending set
// untouched, so a retried call reproduces the identical operation set.
func (s *Session) SaveChangesContext(ctx context.Context) error {
	// Phase: notify before-listeners.
	for i, l := range s.listeners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.BeforeSaveChanges(ctx, s); err != nil {
			return newEngineError(ErrCodeListenerAbort, doc.Identity{},
				fmt.Sprintf("before-save listener %d", i), err)
		}
	}

	// Phase: resolve. The tracker scan runs exactly once per save, before
	// pending changes are resolved; explicit intents take precedence.
	tracked, err := s.trackedChanges()
	if err != nil {
		return err
	}
	ops := s.work.Resolve(tracked)

	// Phase: commit. An empty operation set still runs the surrounding
	// sequence, including after-listeners.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.commit(ctx, ops); err != nil {
		return err
	}
	s.finishCommit(ops)

	// Phase: notify after-listeners. The commit is durable by now, so a
	// failure here is a distinguishable partial success.
	for i, l := range s.listeners {
		if err := l.AfterCommit(ctx, s); err != nil {
			return &AfterCommitError{Listener: i, Err: err}
		}
	}
	return nil
}

func (s *Session) trackedChanges() ([]PendingChange, error) {
	detected := s.identity.DetectChanges()
	if len(detected) == 0 {
		return nil, nil
	}
	tracked := make([]PendingChange, 0, len(detected))
	for _, tc := range detected {
		m, ok := s.registry.ByKey(tc.ID.Type)
		if !ok {
			return nil, newEngineError(ErrCodeUnknownType, tc.ID, "tracked document has no mapping", nil)
		}
		tracked = append(tracked, PendingChange{
			Kind:     ChangeUpdate,
			ID:       tc.ID,
			Table:    m.Table(),
			Document: tc.Document,
		})
	}
	return tracked, nil
}

func (s *Session) commit(ctx context.Context, ops []PendingChange) error {
	if err := s.conn.Begin(ctx); err != nil {
		return newEngineError(ErrCodeCommitFailed, doc.Identity{}, "begin", err)
	}
	if err := s.pipeline.Execute(ctx, ops, s.conn.Tx(), s.tenant); err != nil {
		if rbErr := s.conn.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := s.conn.Commit(); err != nil {
		if rbErr := s.conn.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return newEngineError(ErrCodeCommitFailed, doc.Identity{}, "commit", err)
	}
	return nil
}

// finishCommit consumes the pending set and rolls session bookkeeping
// forward: committed upserts now exist in the store, and their snapshots
// become the new clean baseline. Deleted identities are evicted from the
// identity map: a re-Load after the delete was recorded may have
// re-registered the instance, and its row no longer exists.
func (s *Session) finishCommit(ops []PendingChange) {
	upserted := make([]doc.Identity, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case ChangeInsert, ChangeUpdate:
			s.loaded[op.ID] = true
			upserted = append(upserted, op.ID)
		case ChangeDelete:
			delete(s.loaded, op.ID)
			s.identity.Evict(op.ID)
		}
	}
	s.identity.RefreshSnapshots(upserted)
	s.work.Clear()
	if len(ops) > 0 {
		s.log.Debug("changes committed", "operations", len(ops), "tenant", s.tenant)
	}
}
