package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/slotwise/internal/logging"
)

// CommitRecord captures one attempt to persist a pending change or a new event.
//
// # Privacy Considerations
//
// ContactEmail and ContactPhone are PII. LogAttrs only emits a hash and the
// email domain; LogAuditAttrs emits the raw values and must only be routed to
// an audit stream with appropriate access controls.
type CommitRecord struct {
	EventID   string
	Operation string // update or create
	Gesture   string // drag, resize-start, resize-end, or empty for drafts
	Source    string

	ContactEmail string
	ContactPhone string

	OldStart, OldEnd time.Time
	NewStart, NewEnd time.Time

	Conflicts    int
	Discarded    []string
	KeptExisting bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewCommitRecord creates a CommitRecord with timing started.
// Call Complete() when the commit finishes.
func NewCommitRecord(eventID, operation string) *CommitRecord {
	return &CommitRecord{
		EventID:   eventID,
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithGesture records the gesture that produced the change.
func (r *CommitRecord) WithGesture(gesture string) *CommitRecord {
	r.Gesture = gesture
	return r
}

// WithSource records the event source the commit was sent to.
func (r *CommitRecord) WithSource(source string) *CommitRecord {
	r.Source = source
	return r
}

// WithContact records the booking contact of the event.
func (r *CommitRecord) WithContact(email, phone string) *CommitRecord {
	r.ContactEmail = email
	r.ContactPhone = phone
	return r
}

// WithRanges records the event range before and after the change.
func (r *CommitRecord) WithRanges(oldStart, oldEnd, newStart, newEnd time.Time) *CommitRecord {
	r.OldStart, r.OldEnd = oldStart, oldEnd
	r.NewStart, r.NewEnd = newStart, newEnd
	return r
}

// WithConflicts records how many events conflicted and which were discarded.
func (r *CommitRecord) WithConflicts(n int, discarded []string, keptExisting bool) *CommitRecord {
	r.Conflicts = n
	r.Discarded = append([]string(nil), discarded...)
	r.KeptExisting = keptExisting
	return r
}

// WithSpanContext extracts trace context from the current span.
func (r *CommitRecord) WithSpanContext(ctx context.Context) *CommitRecord {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.TraceID = span.SpanContext().TraceID().String()
		r.SpanID = span.SpanContext().SpanID().String()
	}
	return r
}

// Complete marks the commit as finished and calculates duration.
func (r *CommitRecord) Complete(err error) *CommitRecord {
	r.Duration = time.Since(r.StartTime)
	r.Success = err == nil
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Status returns "success" or "error" based on the Success field.
func (r *CommitRecord) Status() string {
	if r.Success {
		return StatusSuccess
	}
	return StatusError
}

// ContactDomain returns the domain of the contact email for lower-cardinality logging.
func (r *CommitRecord) ContactDomain() string {
	return ExtractContactDomain(r.ContactEmail)
}

// LogAttrs returns slog attributes with contact details hashed.
func (r *CommitRecord) LogAttrs() []slog.Attr {
	attrs := r.baseAttrs()
	if r.ContactEmail != "" || r.ContactPhone != "" {
		attrs = append(attrs, logging.ContactHash(r.ContactEmail, r.ContactPhone))
	}
	if r.ContactEmail != "" {
		attrs = append(attrs, slog.String("contact_domain", r.ContactDomain()))
	}
	return r.appendTrailing(attrs, false)
}

// LogAuditAttrs returns slog attributes including the raw contact details.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored securely.
func (r *CommitRecord) LogAuditAttrs() []slog.Attr {
	attrs := r.baseAttrs()
	if r.ContactEmail != "" {
		attrs = append(attrs, slog.String("contact_email", r.ContactEmail))
	}
	if r.ContactPhone != "" {
		attrs = append(attrs, slog.String("contact_phone", r.ContactPhone))
	}
	return r.appendTrailing(attrs, true)
}

func (r *CommitRecord) baseAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.EventID(r.EventID),
		logging.Operation(r.Operation),
		slog.Duration(logging.KeyDuration, r.Duration),
		slog.Bool("success", r.Success),
	}

	// Add optional fields only if present
	if r.Gesture != "" {
		attrs = append(attrs, slog.String("gesture", r.Gesture))
	}
	if r.Source != "" {
		attrs = append(attrs, logging.Source(r.Source))
	}
	if !r.OldStart.IsZero() {
		attrs = append(attrs,
			slog.Time("old_start", r.OldStart),
			slog.Time("old_end", r.OldEnd))
	}
	if !r.NewStart.IsZero() {
		attrs = append(attrs,
			slog.Time("new_start", r.NewStart),
			slog.Time("new_end", r.NewEnd))
	}
	if r.Conflicts > 0 {
		attrs = append(attrs,
			slog.Int("conflicts", r.Conflicts),
			slog.Any("discarded", r.Discarded),
			slog.Bool("kept_existing", r.KeptExisting))
	}
	return attrs
}

func (r *CommitRecord) appendTrailing(attrs []slog.Attr, withSpan bool) []slog.Attr {
	if r.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", r.TraceID))
	}
	if withSpan && r.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", r.SpanID))
	}
	if r.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, r.Error))
	}
	return attrs
}

// AuditLogger provides structured audit logging for commits.
// It wraps slog.Logger with convenience methods for logging commit records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs (hashed identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: false,
		enabled:    true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include raw contact details in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogCommit writes one audit line for a commit attempt. A nil AuditLogger is
// a no-op.
func (al *AuditLogger) LogCommit(r *CommitRecord) {
	if al == nil || !al.enabled || r == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = r.LogAuditAttrs()
	} else {
		attrs = r.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	al.logger.Info("commit_audit", args...)
}
