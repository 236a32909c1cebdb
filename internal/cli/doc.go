// Package cli implements the strata command line interface.
//
// The CLI is a thin shell over the session engine: every command opens a
// store, builds a registry from CUE type definitions, and drives one
// session. Commands never touch SQL directly.
package cli
