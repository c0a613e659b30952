// Package cmd implements the command-line interface for slotwise.
//
// This package provides the following commands:
//   - events: List events from the configured source, optionally as ICS
//   - simulate: Run one drag or resize gesture through the engine and commit it
//   - conflicts: Show the events overlapping a proposed range
//   - create: Create an event, resolving conflicts like a moved event
//   - import: Import an ICS file into the local event store
//   - replay: Replay a JSON-lines pointer script in real time
//   - serve: Start an MCP server exposing the engine as tools
//   - auth: Authorize Google Calendar access for an account
//   - version: Display version information
package cmd
