package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrOutcome   = "outcome"
	attrSource    = "source"
	attrAction    = "action"
	attrResult    = "result"
	attrEventType = "event_type"
	attrTool      = "tool"
)

// Metrics provides methods for recording observability metrics.
//
// A zero Metrics is a valid no-op recorder, so components can hold a *Metrics
// without checking whether instrumentation is enabled.
type Metrics struct {
	// Gesture metrics
	gestureSessionsActive metric.Int64UpDownCounter
	gestureSessionsTotal  metric.Int64Counter
	previewFramesTotal    metric.Int64Counter

	// Pending change metrics
	pendingChanges         metric.Int64Gauge
	historyOperationsTotal metric.Int64Counter

	// Commit metrics
	commitOperationsTotal  metric.Int64Counter
	commitDuration         metric.Float64Histogram
	conflictsDetectedTotal metric.Int64Counter

	// Event source metrics
	sourceOperationsTotal  metric.Int64Counter
	sourceOperationSeconds metric.Float64Histogram

	// OAuth metrics
	oauthTokenRefreshTotal metric.Int64Counter

	// MCP tool metrics
	toolCallsTotal  metric.Int64Counter
	toolCallSeconds metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.gestureSessionsActive, err = meter.Int64UpDownCounter(
		"gesture_sessions_active",
		metric.WithDescription("Number of drag or resize sessions currently in progress"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gesture_sessions_active gauge: %w", err)
	}

	m.gestureSessionsTotal, err = meter.Int64Counter(
		"gesture_sessions_total",
		metric.WithDescription("Total number of gesture sessions by operation and outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gesture_sessions_total counter: %w", err)
	}

	m.previewFramesTotal, err = meter.Int64Counter(
		"preview_frames_total",
		metric.WithDescription("Total number of preview recomputations"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview_frames_total counter: %w", err)
	}

	m.pendingChanges, err = meter.Int64Gauge(
		"pending_changes",
		metric.WithDescription("Number of events with uncommitted changes"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending_changes gauge: %w", err)
	}

	m.historyOperationsTotal, err = meter.Int64Counter(
		"history_operations_total",
		metric.WithDescription("Total number of pending-change history operations by action"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create history_operations_total counter: %w", err)
	}

	m.commitOperationsTotal, err = meter.Int64Counter(
		"commit_operations_total",
		metric.WithDescription("Total number of commit attempts by operation and status"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create commit_operations_total counter: %w", err)
	}

	m.commitDuration, err = meter.Float64Histogram(
		"commit_duration_seconds",
		metric.WithDescription("Commit duration in seconds, including conflict resolution"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create commit_duration_seconds histogram: %w", err)
	}

	m.conflictsDetectedTotal, err = meter.Int64Counter(
		"conflicts_detected_total",
		metric.WithDescription("Total number of conflicting events found for candidate ranges"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conflicts_detected_total counter: %w", err)
	}

	m.sourceOperationsTotal, err = meter.Int64Counter(
		"event_source_operations_total",
		metric.WithDescription("Total number of event source operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event_source_operations_total counter: %w", err)
	}

	m.sourceOperationSeconds, err = meter.Float64Histogram(
		"event_source_operation_duration_seconds",
		metric.WithDescription("Event source operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event_source_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.toolCallsTotal, err = meter.Int64Counter(
		"mcp_tool_calls_total",
		metric.WithDescription("Total number of MCP tool calls by tool and status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_calls_total counter: %w", err)
	}

	m.toolCallSeconds, err = meter.Float64Histogram(
		"mcp_tool_call_duration_seconds",
		metric.WithDescription("MCP tool call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_call_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordSessionStart records a gesture session entering a dragging or resizing state.
func (m *Metrics) RecordSessionStart(ctx context.Context) {
	if m == nil || m.gestureSessionsActive == nil {
		return // Instrumentation not initialized
	}

	m.gestureSessionsActive.Add(ctx, 1)
}

// RecordSessionEnd records a session returning to idle.
//
// Parameters:
//   - operation: drag, resize-start or resize-end
//   - outcome: finalized, cancelled, reset or empty (released without a preview)
func (m *Metrics) RecordSessionEnd(ctx context.Context, operation, outcome string) {
	if m == nil || m.gestureSessionsActive == nil || m.gestureSessionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.gestureSessionsActive.Add(ctx, -1)
	m.gestureSessionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrOutcome, outcome),
	))
}

// RecordPreviewFrame records one preview recomputation.
func (m *Metrics) RecordPreviewFrame(ctx context.Context, operation string) {
	if m == nil || m.previewFramesTotal == nil {
		return // Instrumentation not initialized
	}

	m.previewFramesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
	))
}

// SetPendingChanges records the current number of events with pending changes.
func (m *Metrics) SetPendingChanges(ctx context.Context, n int) {
	if m == nil || m.pendingChanges == nil {
		return // Instrumentation not initialized
	}

	m.pendingChanges.Record(ctx, int64(n))
}

// RecordHistoryOperation records an add, discard, undo, redo, commit or clear
// against the pending-change history.
func (m *Metrics) RecordHistoryOperation(ctx context.Context, action string) {
	if m == nil || m.historyOperationsTotal == nil {
		return // Instrumentation not initialized
	}

	m.historyOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAction, action),
	))
}

// RecordCommit records a commit attempt with its operation, status and duration.
//
// Parameters:
//   - operation: update or create
//   - status: Result status ("success" or "error")
//   - eventType: event type label, only attached when detailed labels are enabled
//   - duration: Time taken including conflict resolution
func (m *Metrics) RecordCommit(ctx context.Context, operation, status, eventType string, duration time.Duration) {
	if m == nil || m.commitOperationsTotal == nil || m.commitDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && eventType != "" {
		attrs = append(attrs, attribute.String(attrEventType, eventType))
	}

	m.commitOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.commitDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordConflicts records the number of events found overlapping a candidate range.
func (m *Metrics) RecordConflicts(ctx context.Context, n int) {
	if m == nil || m.conflictsDetectedTotal == nil || n <= 0 {
		return
	}

	m.conflictsDetectedTotal.Add(ctx, int64(n))
}

// RecordSourceOperation records a call to an event source collaborator.
//
// Parameters:
//   - source: local, google
//   - operation: list, create, update, delete
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordSourceOperation(ctx context.Context, source, operation, status string, duration time.Duration) {
	if m == nil || m.sourceOperationsTotal == nil || m.sourceOperationSeconds == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSource, source),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.sourceOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sourceOperationSeconds.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordToolCall records one MCP tool call. status is "success" when the tool
// returned a non-error result.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, duration time.Duration) {
	if m == nil || m.toolCallsTotal == nil || m.toolCallSeconds == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	)
	m.toolCallsTotal.Add(ctx, 1, attrs)
	m.toolCallSeconds.Record(ctx, duration.Seconds(), attrs)
}
