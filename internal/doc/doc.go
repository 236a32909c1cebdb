// Package doc holds the per-type metadata the session engine needs to
// persist documents: identities, mappings (table, id extraction and
// assignment), and the process-wide registry of mappings.
//
// The registry is explicit configuration: it is built once at startup and
// passed into session construction. Nothing in this package reads ambient
// global state.
package doc
