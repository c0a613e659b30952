package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "engine.commit")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithComponent(t *testing.T) {
	logger := slog.Default()
	result := WithComponent(logger, "pending")
	if result == nil {
		t.Error("WithComponent returned nil")
	}
}

func TestWithSource(t *testing.T) {
	logger := slog.Default()
	result := WithSource(logger, "google")
	if result == nil {
		t.Error("WithSource returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestComponentAttr(t *testing.T) {
	attr := Component("conflict")
	if attr.Key != KeyComponent {
		t.Errorf("Component key = %q, want %q", attr.Key, KeyComponent)
	}
	if attr.Value.String() != "conflict" {
		t.Errorf("Component value = %q, want %q", attr.Value.String(), "conflict")
	}
}

func TestSourceAttr(t *testing.T) {
	attr := Source("local")
	if attr.Key != KeySource {
		t.Errorf("Source key = %q, want %q", attr.Key, KeySource)
	}
}

func TestEventIDAttr(t *testing.T) {
	attr := EventID("evt-1")
	if attr.Key != KeyEventID {
		t.Errorf("EventID key = %q, want %q", attr.Key, KeyEventID)
	}
	if attr.Value.String() != "evt-1" {
		t.Errorf("EventID value = %q, want %q", attr.Value.String(), "evt-1")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestErr(t *testing.T) {
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// nil yields an empty group that slog omits
	attr = Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		email    string
		wantLen  int
		hasValue bool
	}{
		{"jane@example.com", 24, true}, // "contact:" + 16 hex chars
		{"booker@gmail.com", 24, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := AnonymizeEmail(tt.email)
			if tt.hasValue {
				if len(result) != tt.wantLen {
					t.Errorf("AnonymizeEmail(%q) length = %d, want %d", tt.email, len(result), tt.wantLen)
				}
				if !strings.HasPrefix(result, "contact:") {
					t.Errorf("AnonymizeEmail(%q) should start with 'contact:', got %q", tt.email, result)
				}
			} else if result != "" {
				t.Errorf("AnonymizeEmail(%q) = %q, want empty string", tt.email, result)
			}
		})
	}

	if AnonymizeEmail("test@example.com") != AnonymizeEmail(" Test@Example.com ") {
		t.Error("AnonymizeEmail should normalise case and whitespace")
	}
	if AnonymizeEmail("test@example.com") == AnonymizeEmail("other@example.com") {
		t.Error("Different emails should produce different hashes")
	}
}

func TestContactHash(t *testing.T) {
	attr := ContactHash("jane@example.com", "+15551234")
	if attr.Key != KeyContactHash {
		t.Errorf("ContactHash key = %q, want %q", attr.Key, KeyContactHash)
	}
	if attr.Value.String() != AnonymizeEmail("jane@example.com") {
		t.Error("ContactHash should prefer the email")
	}

	phoneOnly := ContactHash("", "+15551234")
	if phoneOnly.Value.String() != AnonymizeEmail("+15551234") {
		t.Error("ContactHash should fall back to the phone number")
	}

	if ContactHash("", "").Value.String() != "" {
		t.Error("ContactHash of an empty contact should be empty")
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"a_very_long_token_string", "[token:24 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"user@gmail.com", "gmail.com"},
		{"invalid", ""},
		{"", ""},
		{"@", ""},
		{"user@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := ExtractDomain(tt.email)
			if result != tt.expected {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.email, result, tt.expected)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	attr := Domain("jane@example.com")
	if attr.Key != "contact_domain" {
		t.Errorf("Domain key = %q, want %q", attr.Key, "contact_domain")
	}
	if attr.Value.String() != "example.com" {
		t.Errorf("Domain value = %q, want %q", attr.Value.String(), "example.com")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", EventID("evt-1"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if entry[KeyEventID] != "evt-1" {
		t.Errorf("event_id = %v, want evt-1", entry[KeyEventID])
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewLogger(&buf, "DEBUG", ""); err != nil {
		t.Errorf("uppercase level with default format should be accepted: %v", err)
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusSuccess != "success" {
		t.Errorf("StatusSuccess = %q, want %q", StatusSuccess, "success")
	}
	if StatusError != "error" {
		t.Errorf("StatusError = %q, want %q", StatusError, "error")
	}
}
