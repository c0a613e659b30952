// Package logging provides structured logging utilities for slotwise.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog, text or json output (NewLogger)
//   - PII sanitization for booking contacts (ContactHash)
//   - Consistent attribute naming across the codebase
//   - Logger adapter interface for event-source collaborators
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithComponent(slog.Default(), "engine")
//	logger.Warn("commit failed",
//	    logging.EventID(id),
//	    logging.Err(err))
//
// Hash contact details before logging them:
//
//	logger.Info("booking moved",
//	    logging.ContactHash(c.Email, c.Phone))
//
// # Security Considerations
//
//   - Contact emails and phone numbers are hashed so entries can be correlated
//     without leaking PII
//   - OAuth tokens are never logged directly (SanitizeToken)
//
// Per-frame code paths (pointer samples, previews) log at debug level only.
package logging
