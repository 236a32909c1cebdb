package doc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Source_GeneratesValidSortableIDs(t *testing.T) {
	src := UUIDv7Source{}

	a := src.NewID()
	b := src.NewID()

	ua, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), ua.Version())

	_, err = uuid.Parse(b)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFixedSource_ReturnsIDsInOrder(t *testing.T) {
	src := NewFixedSource("a", "b")
	assert.Equal(t, "a", src.NewID())
	assert.Equal(t, "b", src.NewID())
	assert.Panics(t, func() { src.NewID() })
}

func TestIdentity_String(t *testing.T) {
	id := Identity{Type: "widget", Key: "w-1"}
	assert.Equal(t, "widget/w-1", id.String())
	assert.False(t, id.IsZero())
	assert.True(t, Identity{}.IsZero())
	assert.True(t, Identity{Type: "widget"}.IsZero())
}
