package calendar

import (
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/slotwise/internal/models"
)

const (
	// propEventType is the private extended property carrying the event type.
	propEventType = "slotwise_event_type"

	// propPhone is the private extended property carrying the contact phone.
	propPhone = "slotwise_contact_phone"
)

// isAllDay reports whether the Google event is date-only.
func isAllDay(e *gcal.Event) bool {
	return e.Start == nil || e.Start.DateTime == "" || e.End == nil || e.End.DateTime == ""
}

// toEvent converts a timed Google event.
func toEvent(e *gcal.Event) (models.Event, error) {
	if isAllDay(e) {
		return models.Event{}, fmt.Errorf("event %s is an all-day event", e.Id)
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %s: invalid start: %w", e.Id, err)
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %s: invalid end: %w", e.Id, err)
	}

	ev := models.Event{
		ID:        e.Id,
		Title:     e.Summary,
		Start:     start,
		End:       end,
		Status:    e.Status,
		Source:    models.SourceGoogle,
		EventType: e.EventType,
	}
	if ev.Status == "" {
		ev.Status = models.StatusConfirmed
	}

	var phone string
	if e.ExtendedProperties != nil {
		if t := e.ExtendedProperties.Private[propEventType]; t != "" {
			ev.EventType = t
		}
		phone = e.ExtendedProperties.Private[propPhone]
	}
	// Google reports "default" for ordinary events.
	if ev.EventType == "default" {
		ev.EventType = ""
	}

	if c := contactFrom(e.Attendees); c != nil || phone != "" {
		if c == nil {
			c = &models.Contact{}
		}
		c.Phone = phone
		ev.Contact = c
	}
	return ev, nil
}

// contactFrom picks the first attendee that is neither the calendar owner
// nor a resource.
func contactFrom(attendees []*gcal.EventAttendee) *models.Contact {
	for _, a := range attendees {
		if a == nil || a.Self || a.Resource || a.Email == "" {
			continue
		}
		return &models.Contact{Name: a.DisplayName, Email: a.Email}
	}
	return nil
}

func dateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

// fromPatch builds the partial Google event for a Patch request.
func fromPatch(p models.Patch) *gcal.Event {
	e := &gcal.Event{}
	if p.Start != nil {
		e.Start = dateTime(*p.Start)
	}
	if p.End != nil {
		e.End = dateTime(*p.End)
	}
	return e
}

// fromDraft builds the Google event for an Insert request.
func fromDraft(d models.Draft) *gcal.Event {
	e := &gcal.Event{
		Summary: d.Title,
		Start:   dateTime(d.Start),
		End:     dateTime(d.End),
		Status:  strings.ToLower(d.Status),
	}

	private := map[string]string{}
	if d.EventType != "" {
		private[propEventType] = d.EventType
	}
	if d.Contact != nil {
		if d.Contact.Email != "" {
			e.Attendees = []*gcal.EventAttendee{{Email: d.Contact.Email, DisplayName: d.Contact.Name}}
		}
		if d.Contact.Phone != "" {
			private[propPhone] = d.Contact.Phone
		}
	}
	if len(private) > 0 {
		e.ExtendedProperties = &gcal.EventExtendedProperties{Private: private}
	}
	return e
}
