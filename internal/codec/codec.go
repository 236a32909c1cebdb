// Package codec serializes documents to the row-body representation.
//
// The engine uses one canonical JSON form for both stored row bodies and
// change-tracking snapshots, so dirty detection reduces to a byte compare
// of two serializations of the same instance.
package codec

// Serializer converts document instances to and from the store's row-body
// representation. Implementations must be deterministic: serializing an
// unchanged instance twice yields identical bytes.
type Serializer interface {
	Marshal(instance any) ([]byte, error)
	Unmarshal(data []byte, out any) error
}
