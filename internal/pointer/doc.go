// Package pointer turns a stream of raw pointer samples into at most one
// delivery per frame.
//
// Hosts push samples into a Feed (or any Source). A Tracker subscribed to the
// source keeps only the most recent sample and asks its frame.Scheduler for a
// single callback; when the frame arrives the freshest sample is handed to the
// consumer. Samples that arrive between frames are coalesced, last write wins.
package pointer
