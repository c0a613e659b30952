// Package google provides OAuth2 authentication and token management for the
// Google Calendar event source.
//
// Tokens are stored per account as JSON files in the user cache directory
// (google-<account>.token). The TokenProvider interface allows other token
// sources to be plugged in.
package google
