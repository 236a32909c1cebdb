package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/internal/doc"
	"github.com/stratadb/strata/internal/session"
	"github.com/stratadb/strata/internal/store"
	"github.com/stratadb/strata/internal/testutil"
)

// Trace is the command sequence one scenario run emitted, in execution
// order. Save boundaries are marked so golden files show which commit
// carried which commands.
type Trace struct {
	lines []string
}

// Bytes renders the trace for golden comparison.
func (tr *Trace) Bytes() []byte {
	var sb strings.Builder
	for _, line := range tr.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Run executes a scenario against a scratch store and returns the command
// trace. Expectations are asserted before returning.
func Run(t *testing.T, sc *Scenario) *Trace {
	t.Helper()

	reg := doc.NewRegistry()
	for _, td := range sc.Types {
		require.NoError(t, reg.Register(doc.DynamicMapping(td.Name, td.Table, nil)),
			"register type %s", td.Name)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "scenario.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(reg))

	trace := &Trace{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := session.New(context.Background(), st, reg, session.Options{
		Tenant: sc.Tenant,
		Logger: logger,
		CommandObserver: func(stmt string, id doc.Identity) {
			trace.lines = append(trace.lines, fmt.Sprintf("%s -- %s", stmt, id))
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for i, step := range sc.Steps {
		switch {
		case step.Store != nil:
			d := &doc.Document{Type: step.Store.Type, ID: step.Store.ID, Body: step.Store.Body}
			require.NoError(t, s.Store(d), "step %d: store", i)
		case step.Delete != nil:
			require.NoError(t, s.DeleteByKey(step.Delete.Type, step.Delete.ID), "step %d: delete", i)
		case step.Save:
			trace.lines = append(trace.lines, "-- save")
			require.NoError(t, s.SaveChanges(), "step %d: save", i)
		}
	}

	tenant := sc.Tenant
	if tenant == "" {
		tenant = session.DefaultTenant
	}
	for _, exp := range sc.Expect {
		got := testutil.CountRows(t, st, exp.Table, tenant)
		require.Equal(t, exp.Count, got, "rows in %s for tenant %s", exp.Table, tenant)
	}
	return trace
}
