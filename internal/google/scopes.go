package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the Google OAuth scopes slotwise requests.
//
// Only event access is needed: the engine lists, moves, creates and deletes
// events in one calendar.
var DefaultOAuthScopes = []string{
	calendar.CalendarEventsScope,
}
