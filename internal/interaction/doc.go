// Package interaction implements the pointer gesture state machine.
//
// A Controller owns at most one Session at a time. Begin captures the event's
// original range and the pointer origin; every Move recomputes a snapped
// preview range from the pointer delta; Release hands the final range to the
// registered FinalizeFunc. Cancel and Reset return to idle without emitting
// anything.
//
// Geometry never fails. Pointer positions outside the grid are clamped and
// resizes never produce a range shorter than the grid's minimum duration.
//
// The single active session is enforced by a Guard, a claim/release slot for
// the event id being edited. Hosts that run several controllers over one
// calendar can share a Guard between them.
package interaction
