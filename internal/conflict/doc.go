// Package conflict detects overlapping events and runs the resolution
// workflow for a proposed change.
//
// Detect compares a candidate range with a list of events using strict
// overlap: ranges that merely touch do not conflict, and cancelled events and
// the edited event itself are ignored.
//
// A Workflow commits a Proposal through an EventSource. Without conflicts it
// updates or creates the event directly. With conflicts it asks a Decider
// which single event to keep and which conflicting events to delete, then
// runs the deletions followed by the create or update as ordered steps. The
// steps are not atomic; the Outcome lists which ones ran.
package conflict
