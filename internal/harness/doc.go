// Package harness runs yaml-defined write-path scenarios against a real
// SQLite store and compares the command trace the session emitted against
// golden files. Scenarios pin the engine's observable behavior (intent
// collapsing, delete cancellation, tenant scoping) at the SQL boundary.
package harness
