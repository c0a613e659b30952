package instrumentation

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
		Audit:          AuditConfig{Enabled: true},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.False(t, provider.Enabled())
	assert.NotNil(t, provider.Metrics(), "expected metrics to be non-nil even when disabled")
	assert.Nil(t, provider.PrometheusHandler())
	require.NotNil(t, provider.Audit(), "audit records do not depend on metrics")
	assert.True(t, provider.Audit().enabled)
	assert.NotNil(t, provider.Tracer("test"), "expected no-op tracer")
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		Metrics:         ExporterPrometheus,
		Tracing:         ExporterNone,
		EventTypeLabels: true,
	}, nil)
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	assert.True(t, provider.Enabled())
	require.NotNil(t, provider.Metrics())

	provider.Metrics().RecordSessionStart(ctx)
	provider.Metrics().RecordSessionEnd(ctx, "drag", OutcomeFinalized)

	handler := provider.PrometheusHandler()
	require.NotNil(t, handler, "expected PrometheusHandler for prometheus exporter")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "gesture_sessions_total")
}

func TestNewProvider_SeparateRegistries(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Enabled: true, Metrics: ExporterPrometheus, Tracing: ExporterNone}

	first, err := NewProvider(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = first.Shutdown(ctx) }()

	second, err := NewProvider(ctx, cfg, nil)
	require.NoError(t, err, "a second provider must not collide with the first")
	defer func() { _ = second.Shutdown(ctx) }()
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		Metrics:         ExporterStdout,
		Tracing:         ExporterStdout,
		SampleRate:      1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	assert.True(t, provider.Enabled())
	assert.Nil(t, provider.PrometheusHandler(), "expected PrometheusHandler to be nil for stdout exporter")
	assert.NotNil(t, provider.Tracer("test"))
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"invalid metrics exporter", Config{Enabled: true, Metrics: "invalid", Tracing: ExporterNone}},
		{"invalid tracing exporter", Config{Enabled: true, Metrics: ExporterPrometheus, Tracing: "invalid"}},
		{"otlp tracing without endpoint", Config{Enabled: true, Metrics: ExporterPrometheus, Tracing: ExporterOTLP}},
		{"sampling rate out of range", Config{Enabled: true, SampleRate: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config, nil)
			assert.Error(t, err)
		})
	}
}

func TestProvider_AuditWritesToLogger(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(context.Background(), Config{
		Audit: AuditConfig{Enabled: true, IncludePII: true},
	}, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)

	al := provider.Audit()
	require.NotNil(t, al)
	assert.True(t, al.includePII)

	al.LogCommit(NewCommitRecord("evt-1", OperationCreate).WithContact("jane@example.com", "").Complete(nil))
	assert.Contains(t, buf.String(), "commit_audit")
	assert.Contains(t, buf.String(), "jane@example.com")
}

func TestProvider_AuditDisabled(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(context.Background(), Config{}, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)

	provider.Audit().LogCommit(NewCommitRecord("evt-1", OperationCreate).Complete(nil))
	assert.Empty(t, buf.String())
}
