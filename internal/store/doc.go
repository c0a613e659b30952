// Package store is a local, file-backed event source.
//
// Events are stored one JSON document per file with diskv, keyed by a
// generated UUID. The store implements conflict.EventSource so the engine can
// commit against it exactly like a remote calendar. ICS files can be imported
// into the store and the stored events exported back to ICS.
package store
