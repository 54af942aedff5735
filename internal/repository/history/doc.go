// Package history persists the outcome of every package sync in SQLite.
//
// The history is informational: it backs the status command and is never
// consulted to skip a sync.
package history
