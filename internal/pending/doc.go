// Package pending buffers unsaved event changes with an undo/redo history.
//
// The Store is the single owner of the pending map. Every Add or Discard
// pushes a full snapshot onto the history and moves the cursor to it; Undo and
// Redo move the cursor and restore the snapshot it points at. Adding after an
// undo drops the redo tail.
//
// Overlay returns an event with its pending patch applied. Results are
// memoized per event id and reused while the base range and the patch are
// unchanged.
package pending
