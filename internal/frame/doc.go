// Package frame provides "next frame" deferral for the pointer pipeline.
//
// A Scheduler runs a callback once, on the next frame, unless the callback is
// cancelled first. Two implementations are available:
//
//   - Manual advances only when Flush is called, for tests and scripted replays
//   - Ticker fires on a wall-clock interval (16ms by default, roughly 60Hz)
//
// Tokens are never reused, so cancelling a token that already fired or was
// never issued is a harmless no-op.
package frame
