package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

// icsNamespace derives stable event ids from ICS UIDs, so re-importing a file
// updates events instead of duplicating them.
var icsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/teemow/slotwise/ics"))

// ImportStats summarises an ICS import.
type ImportStats struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Reasons  []string `json:"reasons,omitempty"`
}

// EventIDForUID returns the store id used for an ICS UID.
func EventIDForUID(uid string) string {
	return uuid.NewSHA1(icsNamespace, []byte(uid)).String()
}

// ParseICS converts the timed VEVENTs in r to events. All-day events and
// events without a valid range are skipped and counted.
func ParseICS(r io.Reader) ([]models.Event, ImportStats, error) {
	var stats ImportStats

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse ICS: %w", err)
	}

	var events []models.Event
	for _, ve := range cal.Events() {
		ev, err := fromVEvent(ve)
		if err != nil {
			stats.Skipped++
			stats.Reasons = append(stats.Reasons, err.Error())
			continue
		}
		events = append(events, ev)
	}
	return events, stats, nil
}

func fromVEvent(ve *ical.VEvent) (models.Event, error) {
	uid := ""
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		uid = strings.TrimSpace(p.Value)
	}
	if uid == "" {
		return models.Event{}, errors.New("missing UID")
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil && !strings.Contains(p.Value, "T") {
		return models.Event{}, fmt.Errorf("%s: all-day events are not scheduled on the time grid", uid)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", uid, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", uid, err)
	}

	ev := models.Event{
		ID:     EventIDForUID(uid),
		Start:  start,
		End:    end,
		Status: models.StatusConfirmed,
		Source: models.SourceICS,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && p.Value != "" {
		ev.Status = strings.ToLower(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil && p.Value != "" {
		ev.EventType = strings.TrimSpace(strings.Split(p.Value, ",")[0])
	}
	if p := ve.GetProperty(ical.ComponentPropertyAttendee); p != nil {
		email := strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
		if email != "" {
			ev.Contact = &models.Contact{Email: email}
			if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 {
				ev.Contact.Name = cn[0]
			}
		}
	}

	if err := ev.Validate(); err != nil {
		return models.Event{}, fmt.Errorf("%s: %w", uid, err)
	}
	return ev, nil
}

// ImportICS parses r and stores every timed event, replacing earlier imports
// of the same UID.
func (s *Store) ImportICS(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	err := s.observe(ctx, instrumentation.OperationImport, "", func(ctx context.Context) error {
		ctx, span := instrumentation.StartSpan(ctx, instrumentation.SpanImport)
		defer span.End()

		events, parsed, err := ParseICS(r)
		stats = parsed
		if err != nil {
			instrumentation.SetSpanError(span, err)
			return err
		}
		for _, ev := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.write(ev); err != nil {
				return err
			}
			stats.Imported++
		}
		instrumentation.SetSpanSuccess(span)
		return nil
	})
	if err != nil {
		return stats, err
	}

	s.logger.Info("ics import completed",
		"imported", stats.Imported,
		"skipped", stats.Skipped,
		logging.KeyStatus, logging.StatusSuccess)
	return stats, nil
}

// ExportICS renders events as an ICS calendar.
func ExportICS(events []models.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//teemow//slotwise//EN")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		if ev.Title != "" {
			ve.SetSummary(ev.Title)
		}
		if ev.Status != "" {
			ve.SetProperty(ical.ComponentPropertyStatus, strings.ToUpper(ev.Status))
		}
		if ev.EventType != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.EventType)
		}
	}
	return cal.Serialize()
}
