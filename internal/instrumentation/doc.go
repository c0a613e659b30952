// Package instrumentation provides OpenTelemetry instrumentation for slotwise.
//
// This package enables observability of the scheduling engine through:
//   - OpenTelemetry metrics for gesture sessions, pending changes and commits
//   - Distributed tracing for commits, conflict resolution and event source calls
//   - Prometheus metrics export via a per-provider registry
//   - OTLP export support for modern observability platforms
//   - Audit records for every commit attempt
//
// # Metrics
//
// Gesture Metrics:
//   - gesture_sessions_active: Gauge of drag/resize sessions in progress
//   - gesture_sessions_total: Counter of sessions by operation and outcome
//   - preview_frames_total: Counter of preview recomputations by operation
//
// Pending Change Metrics:
//   - pending_changes: Gauge of events with uncommitted changes
//   - history_operations_total: Counter of add/discard/undo/redo/commit/clear
//
// Commit Metrics:
//   - commit_operations_total: Counter of commit attempts by operation and status
//   - commit_duration_seconds: Histogram of commit durations
//   - conflicts_detected_total: Counter of conflicting events found
//
// Event Source Metrics:
//   - event_source_operations_total: Counter by source, operation and status
//   - event_source_operation_duration_seconds: Histogram of source call durations
//
// MCP Tool Metrics:
//   - mcp_tool_calls_total: Counter of tool calls by tool and status
//   - mcp_tool_call_duration_seconds: Histogram of tool call durations
//
// A nil or zero *Metrics is a valid no-op recorder.
//
// # Tracing
//
// Spans are created for:
//   - engine.commit: one commit of a pending change or draft
//   - conflict.resolve: conflict detection and the resolution steps
//   - eventsource.<operation>: calls to the local store or Google Calendar
//
// # Configuration
//
// Config is filled from the telemetry and audit sections of the slotwise
// config file (or SLOTWISE_TELEMETRY_* and SLOTWISE_AUDIT_* variables):
//
//	telemetry:
//	  metrics: prometheus      # prometheus, otlp, stdout
//	  tracing: none            # none, otlp, stdout
//	  otlp_endpoint: localhost:4318
//	  sample_rate: 0.1
//	  event_type_labels: false
//	audit:
//	  enabled: true
//	  include_contacts: false
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordCommit(ctx, instrumentation.OperationUpdate, instrumentation.StatusSuccess, "", time.Since(start))
//	provider.Audit().LogCommit(record)
package instrumentation
