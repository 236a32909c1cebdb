package doc

import (
	"sync"

	"github.com/google/uuid"
)

// IDSource produces keys for documents that arrive without one.
// Implemented by UUIDv7Source (production) and FixedSource (tests).
type IDSource interface {
	NewID() string
}

// UUIDv7Source generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so generated
// keys sort by creation time, which keeps primary-key pages append-mostly.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// NewID returns a hyphenated UUIDv7 string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedSource returns predetermined keys in order, for deterministic tests
// and golden comparisons.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSource struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSource creates a source that returns the given keys in order.
// It panics when the keys are exhausted; tests should provide exactly as
// many as they consume.
func NewFixedSource(ids ...string) *FixedSource {
	return &FixedSource{ids: ids}
}

func (s *FixedSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.ids) {
		panic("doc: FixedSource exhausted")
	}
	id := s.ids[s.idx]
	s.idx++
	return id
}
