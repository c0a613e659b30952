package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics or audit records that
// mention booking contacts.

// ExtractContactDomain extracts the domain part from a contact email address.
// This reduces cardinality by using the domain instead of the full email.
//
// Example:
//
//	ExtractContactDomain("jane@example.com")  // "example.com"
//	ExtractContactDomain("invalid")           // "unknown"
//	ExtractContactDomain("")                  // "unknown"
func ExtractContactDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Common operation types for commit and event source metrics.
// Status, OAuth, and source constants are defined in config.go.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationImport = "import"
)
