// Package batch runs ordered multi-step operations and reports each step.
//
// Conflict resolution deletes N events and then creates or updates one; the
// steps are not atomic, so callers get one Result per step telling them which
// ones ran, which failed and which were skipped after the first failure.
//
// This package includes helpers for:
//   - Running steps in order with stop-on-first-failure semantics
//   - Parsing id lists given as repeated or comma-separated flags
//   - Summarizing and formatting results consistently
package batch
