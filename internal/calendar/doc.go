// Package calendar implements an event source backed by a Google Calendar.
//
// A Source lists timed events in a rolling window, moves and resizes them
// with the Events.Patch API, creates new ones and deletes discarded ones.
// All-day events are not schedulable on the grid and are skipped.
package calendar
