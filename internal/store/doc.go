// Package store provides the SQLite layer under the session engine: the
// database handle with its required pragmas, schema generation from the
// mapping registry, the managed per-session connection that owns the open
// transaction, and the point-read path.
package store
