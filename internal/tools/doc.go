// Package tools exposes the scheduling engine as MCP tools.
//
// All tools share one engine, so pending changes and their undo history
// survive between calls. Calls are serialized.
//
// Read tools:
//   - slotwise_list_events: events with pending changes applied
//   - slotwise_check_conflicts: events overlapping a proposed range
//   - slotwise_list_pending: pending changes and undo/redo availability
//
// Pending-change tools only touch the in-memory overlay:
//   - slotwise_move_event: drag or resize an event by a number of minutes
//   - slotwise_discard, slotwise_undo, slotwise_redo
//
// Write tools are registered unless the server is read-only:
//   - slotwise_commit: commit one or every pending change
//   - slotwise_create_event: create an event
//
// A commit that hits conflicting events is rejected unless the call says
// what to keep. The error result lists the conflicting ids; the agent calls
// again with keep set to "candidate" or one of those ids, and optionally a
// discard list.
package tools
