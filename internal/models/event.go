package models

import (
	"fmt"
	"time"
)

// Event status values.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// Event sources.
const (
	SourceLocal  = "local"
	SourceGoogle = "google"
	SourceICS    = "ics"
)

// Contact holds the optional contact details attached to a booking.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsZero reports whether no contact field is set.
func (c Contact) IsZero() bool {
	return c.Name == "" && c.Email == "" && c.Phone == ""
}

// Event represents a calendar event as seen by the scheduling engine.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	EventType string    `json:"event_type,omitempty"`
	Status    string    `json:"status,omitempty"`
	Source    string    `json:"source,omitempty"`
	Contact   *Contact  `json:"contact,omitempty"`
}

// Range returns the event's time range.
func (e Event) Range() Range {
	return Range{Start: e.Start, End: e.End}
}

// Cancelled reports whether the event has been cancelled.
func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// Clone returns a copy that shares no pointers with e.
func (e Event) Clone() Event {
	if e.Contact != nil {
		c := *e.Contact
		e.Contact = &c
	}
	return e
}

// Validate checks the end > start invariant.
func (e Event) Validate() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("event %q: start and end are required", e.ID)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("event %q: end %s is not after start %s", e.ID,
			e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Valid reports whether End is strictly after Start.
func (r Range) Valid() bool {
	return r.End.After(r.Start)
}

// Equal compares both boundaries as instants.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r Range) String() string {
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}

// Draft describes an event that does not exist yet.
type Draft struct {
	Title     string
	Start     time.Time
	End       time.Time
	EventType string
	Status    string
	Contact   *Contact
}

// Range returns the draft's time range.
func (d Draft) Range() Range {
	return Range{Start: d.Start, End: d.End}
}
