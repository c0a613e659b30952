// Package engine wires the pointer pipeline, the gesture controller, the
// pending-change store and the conflict workflow into one scheduling engine.
//
// A gesture runs Begin -> pointer samples -> Release. On release the final
// range is written to the pending store as a patch. In ModeBuffered the change
// waits for CommitOne or CommitAll; in ModeImmediate it is committed straight
// away. A failed commit leaves the pending entry in place so the view keeps
// showing the edited position and the caller can retry or discard it.
package engine
