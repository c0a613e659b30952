package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the slotwise module.
const TracerName = "github.com/teemow/slotwise"

// Span names.
const (
	SpanCommit       = "engine.commit"
	SpanResolve      = "conflict.resolve"
	SpanSourcePrefix = "eventsource."
	SpanImport       = "store.import"
)

// Span attribute keys for operations.
const (
	// SpanAttrEventID is the calendar event identifier.
	SpanAttrEventID = "slotwise.event_id"

	// SpanAttrOperation is the operation type attribute (update, create, delete, list).
	SpanAttrOperation = "slotwise.operation"

	// SpanAttrSource is the event source name (local, google).
	SpanAttrSource = "slotwise.source"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "slotwise.status"

	// SpanAttrConflicts is the number of conflicting events found.
	SpanAttrConflicts = "slotwise.conflicts"

	// SpanAttrGesture is the gesture that produced the change (drag, resize-start, resize-end).
	SpanAttrGesture = "slotwise.gesture"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 6),
	}
}

// WithEventID adds the event id attribute. Empty ids are skipped.
func (b *SpanAttributeBuilder) WithEventID(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrEventID, id))
	}
	return b
}

// WithOperation adds the operation type attribute.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithSource adds the event source attribute.
func (b *SpanAttributeBuilder) WithSource(source string) *SpanAttributeBuilder {
	if source != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrSource, source))
	}
	return b
}

// WithGesture adds the gesture attribute.
func (b *SpanAttributeBuilder) WithGesture(gesture string) *SpanAttributeBuilder {
	if gesture != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrGesture, gesture))
	}
	return b
}

// WithConflicts adds the conflict count attribute.
func (b *SpanAttributeBuilder) WithConflicts(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrConflicts, n))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// Returns the context with the span and the span itself.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartCommitSpan starts the span wrapping one commit of a pending change or draft.
func StartCommitSpan(ctx context.Context, eventID, operation string) (context.Context, trace.Span) {
	attrs := NewSpanAttributeBuilder().
		WithEventID(eventID).
		WithOperation(operation).
		Build()
	return StartSpan(ctx, SpanCommit, attrs...)
}

// StartSourceSpan starts a span for an event source call.
// Includes source and operation attributes and sets the client span kind.
func StartSourceSpan(ctx context.Context, source, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrSource, source),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, SpanSourcePrefix+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the current span in context.
// Returns empty string if no valid span is present.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
