package instrumentation

import (
	"errors"
	"fmt"
	"time"
)

// Config selects how gesture, commit and source telemetry leaves the process.
// cmd fills it from the telemetry and audit sections of the slotwise config.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled turns on the meter and tracer providers. Audit records are
	// governed by Audit alone.
	Enabled bool

	// Metrics is the metrics exporter: prometheus, otlp or stdout.
	Metrics string

	// Tracing is the span exporter: none, otlp or stdout.
	Tracing string

	// OTLPEndpoint is host:port of the collector, used by both OTLP paths.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Commit spans carry event ids,
	// keep this off outside local development.
	OTLPInsecure bool

	// SampleRate is the parent-based trace sampling ratio in [0, 1].
	SampleRate float64

	// EventTypeLabels adds the event_type label to commit metrics. Event
	// types are user-defined, so the label is off unless asked for.
	EventTypeLabels bool

	Audit AuditConfig
}

// AuditConfig controls commit audit records.
type AuditConfig struct {
	Enabled bool

	// IncludePII writes raw contact email and phone instead of a hash.
	IncludePII bool
}

// DefaultConfig returns the settings used when nothing is configured: a
// Prometheus registry, no tracing and hashed contacts in audit records.
func DefaultConfig() Config {
	return Config{
		ServiceName: "slotwise",
		Enabled:     true,
		Metrics:     ExporterPrometheus,
		Tracing:     ExporterNone,
		SampleRate:  0.1,
		Audit:       AuditConfig{Enabled: true},
	}
}

// Validate checks exporter names and their required settings.
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("trace sample rate must be between 0.0 and 1.0, got %v", c.SampleRate))
	}

	switch c.Metrics {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required for the otlp metrics exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q (valid: prometheus, otlp, stdout)", c.Metrics))
	}

	switch c.Tracing {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required for the otlp tracing exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q (valid: none, otlp, stdout)", c.Tracing))
	}

	return errors.Join(errs...)
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth result values
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Event source names
	SourceLocal  = "local"
	SourceGoogle = "google"

	// Gesture session outcomes
	OutcomeFinalized = "finalized"
	OutcomeCancelled = "cancelled"
	OutcomeReset     = "reset"
	OutcomeEmpty     = "empty"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// Push interval of the otlp and stdout metric readers
	DefaultMetricInterval = 10 * time.Second
)
