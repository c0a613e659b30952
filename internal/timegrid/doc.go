// Package timegrid maps pointer geometry to calendar time.
//
// Every function in this package is total: NaN or out-of-range coordinates are
// clamped to the visible window instead of returning an error, because the
// functions run once per display frame while a gesture is live and must never
// fail mid-gesture.
//
// Times are quantised to whole minutes before they are compared or snapped, so
// sub-minute drift from fractional pointer coordinates cannot leak into a
// preview.
package timegrid
