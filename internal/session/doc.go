// Package session implements the session-scoped persistence engine: the
// identity map with optional change tracking, the unit of work that
// accumulates and resolves pending mutations, the batched commit pipeline,
// and the Session composition root that orchestrates listeners, resolution,
// and the transactional commit.
//
// A session is driven by one logical flow of control at a time. Internal
// state is not locked; callers needing concurrency use distinct sessions,
// each bound to its own managed connection.
package session
