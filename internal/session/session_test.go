package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/store"
	"github.com/stratadb/strata/internal/testutil"
)

// testEnv is one store + registry that several sessions can share.
type testEnv struct {
	reg *doc.Registry
	st  *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := testutil.NewRegistry(t,
		testutil.WidgetMapping(t, doc.NewFixedSource("gen-1", "gen-2", "gen-3")),
		testutil.GadgetMapping(t, nil),
	)
	return &testEnv{reg: reg, st: testutil.OpenStore(t, reg)}
}

func (e *testEnv) open(t *testing.T, opts Options, listeners ...Listener) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	s, err := New(context.Background(), e.st, e.reg, opts, listeners...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSession_StoreThenSavePersistsRow(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})

	w := &testutil.Widget{ID: "w-1", Name: "bolt", Count: 3}
	require.NoError(t, s.Store(w))
	assert.Equal(t, 1, s.PendingCount())

	require.NoError(t, s.SaveChanges())
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
}

func TestSession_StoreAssignsKeyWhenUnset(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})

	w := &testutil.Widget{Name: "fresh"}
	require.NoError(t, s.Store(w))
	assert.Equal(t, "gen-1", w.ID)

	cached, ok := s.Cached("widget", "gen-1")
	require.True(t, ok)
	assert.Same(t, w, cached)
}

func TestSession_LoadTwiceReturnsSameInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writer := env.open(t, Options{})
	require.NoError(t, writer.Store(&testutil.Widget{ID: "w-1", Name: "bolt"}))
	require.NoError(t, writer.SaveChanges())

	// A fresh session deserializes once and then serves the same
	// reference on every subsequent load.
	reader := env.open(t, Options{})
	first, found, err := reader.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)

	second, found, err := reader.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, first, second)
}

func TestSession_StoreTwiceProducesOneWrite(t *testing.T) {
	env := newTestEnv(t)
	var commands []string
	s := env.open(t, Options{
		CommandObserver: func(stmt string, id doc.Identity) {
			commands = append(commands, stmt)
		},
	})

	w := &testutil.Widget{ID: "w-1", Name: "v1"}
	require.NoError(t, s.Store(w))
	w.Name = "v2"
	require.NoError(t, s.Store(w))

	require.NoError(t, s.SaveChanges())

	assert.Len(t, commands, 1)
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
}

func TestSession_StoreThenDeleteLeavesNoRow(t *testing.T) {
	// Delete after a same-session store of a not-yet-existing identity is
	// silently dropped: no insert, no delete.
	env := newTestEnv(t)
	var commands []string
	s := env.open(t, Options{
		CommandObserver: func(stmt string, id doc.Identity) {
			commands = append(commands, stmt)
		},
	})

	require.NoError(t, s.Store(&testutil.Widget{ID: "w-5", Name: "ghost"}))
	require.NoError(t, s.DeleteByKey("widget", "w-5"))
	require.NoError(t, s.SaveChanges())

	assert.Empty(t, commands)
	assert.Equal(t, 0, testutil.CountRows(t, env.st, "widgets", "default"))
}

func TestSession_DeleteLoadedDocumentRemovesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writer := env.open(t, Options{})
	require.NoError(t, writer.Store(&testutil.Widget{ID: "w-1", Name: "bolt"}))
	require.NoError(t, writer.SaveChanges())

	s := env.open(t, Options{})
	loaded, found, err := s.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, s.Delete(loaded))
	require.NoError(t, s.SaveChanges())

	assert.Equal(t, 0, testutil.CountRows(t, env.st, "widgets", "default"))

	// The identity map no longer holds the document.
	_, cached := s.Cached("widget", "w-1")
	assert.False(t, cached)
	_, found, err = s.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_LoadAfterPendingDeleteDoesNotSurviveCommit(t *testing.T) {
	// Re-loading a document after its delete was recorded re-registers the
	// instance (the row still exists until commit). The commit must evict
	// it again, or a later load would serve an instance for a missing row.
	env := newTestEnv(t)
	ctx := context.Background()

	writer := env.open(t, Options{})
	require.NoError(t, writer.Store(&testutil.Widget{ID: "w-1", Name: "bolt"}))
	require.NoError(t, writer.SaveChanges())

	s := env.open(t, Options{})
	require.NoError(t, s.DeleteByKey("widget", "w-1"))

	// Pre-commit the row is still readable.
	_, found, err := s.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, s.SaveChanges())
	assert.Equal(t, 0, testutil.CountRows(t, env.st, "widgets", "default"))

	_, cached := s.Cached("widget", "w-1")
	assert.False(t, cached)
	_, found, err = s.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_FailedCommitPreservesPendingSet(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})

	// Seed a conflicting row behind the session's back.
	_, err := env.st.DB().Exec("INSERT INTO widgets (id, tenant_id, data) VALUES ('w-2', 'default', '{}')")
	require.NoError(t, err)

	require.NoError(t, s.Store(&testutil.Widget{ID: "w-1", Name: "one"}))
	require.NoError(t, s.Store(&testutil.Widget{ID: "w-2", Name: "dup"}))

	saveErr := s.SaveChanges()
	require.Error(t, saveErr)
	var engErr *EngineError
	require.True(t, errors.As(saveErr, &engErr))
	assert.Equal(t, ErrCodeCommitFailed, engErr.Code)

	// Atomicity: nothing applied, pending untouched.
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 2, s.PendingCount())

	// Removing the conflict lets the identical set commit.
	_, err = env.st.DB().Exec("DELETE FROM widgets WHERE id = 'w-2'")
	require.NoError(t, err)
	require.NoError(t, s.SaveChanges())
	assert.Equal(t, 2, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 0, s.PendingCount())
}

type recordingListener struct {
	name   string
	events *[]string
	fail   string // "", "before", or "after"
}

func (l *recordingListener) BeforeSaveChanges(ctx context.Context, s *Session) error {
	*l.events = append(*l.events, l.name+":before")
	if l.fail == "before" {
		return fmt.Errorf("%s before failed", l.name)
	}
	return nil
}

func (l *recordingListener) AfterCommit(ctx context.Context, s *Session) error {
	*l.events = append(*l.events, l.name+":after")
	if l.fail == "after" {
		return fmt.Errorf("%s after failed", l.name)
	}
	return nil
}

func TestSession_ListenersRunInRegistrationOrder(t *testing.T) {
	env := newTestEnv(t)
	var events []string
	l1 := &recordingListener{name: "L1", events: &events}
	l2 := &recordingListener{name: "L2", events: &events}
	s := env.open(t, Options{}, l1, l2)

	require.NoError(t, s.Store(&testutil.Widget{ID: "w-1"}))
	require.NoError(t, s.SaveChanges())

	assert.Equal(t, []string{"L1:before", "L2:before", "L1:after", "L2:after"}, events)
}

func TestSession_BeforeListenerFailureAbortsSave(t *testing.T) {
	env := newTestEnv(t)
	var events []string
	l1 := &recordingListener{name: "L1", events: &events, fail: "before"}
	l2 := &recordingListener{name: "L2", events: &events}
	s := env.open(t, Options{}, l1, l2)

	require.NoError(t, s.Store(&testutil.Widget{ID: "w-1"}))
	saveErr := s.SaveChanges()

	var engErr *EngineError
	require.True(t, errors.As(saveErr, &engErr))
	assert.Equal(t, ErrCodeListenerAbort, engErr.Code)

	// L2's before never ran, no after notifications fired, nothing was
	// committed, and the pending set survived for retry.
	assert.Equal(t, []string{"L1:before"}, events)
	assert.Equal(t, 0, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 1, s.PendingCount())
}

func TestSession_AfterListenerFailureIsPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	var events []string
	l1 := &recordingListener{name: "L1", events: &events, fail: "after"}
	l2 := &recordingListener{name: "L2", events: &events}
	s := env.open(t, Options{}, l1, l2)

	require.NoError(t, s.Store(&testutil.Widget{ID: "w-1"}))
	saveErr := s.SaveChanges()

	var afterErr *AfterCommitError
	require.True(t, errors.As(saveErr, &afterErr))
	assert.Equal(t, 0, afterErr.Listener)

	// The commit is durable and consumed even though the save errored.
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, []string{"L1:before", "L2:before", "L1:after"}, events)
}

func TestSession_EmptySaveStillNotifiesListeners(t *testing.T) {
	env := newTestEnv(t)
	var events []string
	l := &recordingListener{name: "L1", events: &events}
	s := env.open(t, Options{}, l)

	require.NoError(t, s.SaveChanges())
	assert.Equal(t, []string{"L1:before", "L1:after"}, events)
}

func TestSession_ChangeTrackingPersistsInPlaceMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writer := env.open(t, Options{})
	require.NoError(t, writer.Store(&testutil.Widget{ID: "w-1", Name: "v1", Count: 1}))
	require.NoError(t, writer.SaveChanges())

	tracked := env.open(t, Options{TrackChanges: true})
	loaded, found, err := tracked.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)

	// Mutate in place without calling Store.
	loaded.(*testutil.Widget).Name = "v2"
	require.NoError(t, tracked.SaveChanges())

	// A second save detects nothing further: the baseline moved forward.
	var commands []string
	tracked.pipeline.SetObserver(func(stmt string, id doc.Identity) {
		commands = append(commands, stmt)
	})
	require.NoError(t, tracked.SaveChanges())
	assert.Empty(t, commands)

	fresh := env.open(t, Options{})
	reloaded, found, err := fresh.Load(ctx, "widget", "w-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", reloaded.(*testutil.Widget).Name)
}

func TestSession_ExplicitStoreTakesPrecedenceOverTracker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writer := env.open(t, Options{})
	require.NoError(t, writer.Store(&testutil.Widget{ID: "w-1", Name: "v1"}))
	require.NoError(t, writer.SaveChanges())

	var commands []string
	s := env.open(t, Options{TrackChanges: true, CommandObserver: func(stmt string, id doc.Identity) {
		commands = append(commands, stmt)
	}})
	loaded, _, err := s.Load(ctx, "widget", "w-1")
	require.NoError(t, err)

	// Mutate in place AND store explicitly: exactly one write results.
	w := loaded.(*testutil.Widget)
	w.Name = "v2"
	require.NoError(t, s.Store(w))
	require.NoError(t, s.SaveChanges())

	assert.Len(t, commands, 1)
}

func TestSession_StoreObjectsGroupsByTypeAndSkipsNils(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})

	inputs := []any{
		&testutil.Widget{ID: "w-1", Name: "bolt"},
		nil,
		&testutil.Gadget{ID: "g-1", Label: "dial"},
	}
	require.NoError(t, s.StoreObjects(inputs))
	require.NoError(t, s.SaveChanges())

	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "gadgets", "default"))
}

func TestSession_ArgumentErrors(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})

	var engErr *EngineError

	err := s.Store(nil)
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, ErrCodeNilDocument, engErr.Code)

	err = s.Store(struct{ X int }{})
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, ErrCodeUnknownType, engErr.Code)

	err = s.Delete(nil)
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, ErrCodeNilDocument, engErr.Code)

	err = s.Delete(&testutil.Widget{}) // no key
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, ErrCodeNilDocument, engErr.Code)

	err = s.DeleteByKey("nope", "x")
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, ErrCodeUnknownType, engErr.Code)

	// Nothing was recorded by any of the failures.
	assert.Equal(t, 0, s.PendingCount())
}

func TestSession_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)

	acme := env.open(t, Options{Tenant: "acme"})
	globex := env.open(t, Options{Tenant: "globex"})

	require.NoError(t, acme.Store(&testutil.Widget{ID: "w-1", Name: "acme's"}))
	require.NoError(t, acme.SaveChanges())

	// Same id is invisible to the other tenant.
	_, found, err := globex.Load(context.Background(), "widget", "w-1")
	require.NoError(t, err)
	assert.False(t, found)

	// And deleting under the wrong tenant leaves the row alone.
	require.NoError(t, globex.DeleteByKey("widget", "w-1"))
	require.NoError(t, globex.SaveChanges())
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "acme"))
}

func TestSession_CancelledContextAbortsBeforeCommit(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t, Options{})
	require.NoError(t, s.Store(&testutil.Widget{ID: "w-1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveChangesContext(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, testutil.CountRows(t, env.st, "widgets", "default"))
	assert.Equal(t, 1, s.PendingCount())

	// The same session can still save once the caller retries.
	require.NoError(t, s.SaveChanges())
	assert.Equal(t, 1, testutil.CountRows(t, env.st, "widgets", "default"))
}
