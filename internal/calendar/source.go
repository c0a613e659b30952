package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/google"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

const (
	// DefaultCalendarID is the account's primary calendar.
	DefaultCalendarID = "primary"

	// DefaultLookBehind and DefaultLookAhead bound the listed window.
	DefaultLookBehind = 7 * 24 * time.Hour
	DefaultLookAhead  = 60 * 24 * time.Hour
)

var _ conflict.EventSource = (*Source)(nil)

// Source is a conflict.EventSource backed by one Google Calendar.
type Source struct {
	svc        *gcal.Service
	calendarID string
	account    string

	lookBehind time.Duration
	lookAhead  time.Duration
	now        func() time.Time

	logger  logging.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records event source metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Source) {
		s.metrics = m
	}
}

// WithWindow sets how far before and after now events are listed.
func WithWindow(behind, ahead time.Duration) Option {
	return func(s *Source) {
		if behind > 0 {
			s.lookBehind = behind
		}
		if ahead > 0 {
			s.lookAhead = ahead
		}
	}
}

// WithClock overrides time.Now for the listing window.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSource creates a Source for account using a token from provider.
func NewSource(ctx context.Context, account, calendarID string, provider google.TokenProvider, opts ...Option) (*Source, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	if !provider.HasTokenForAccount(account) {
		return nil, errors.New(google.GetAuthenticationErrorMessage(account))
	}

	probe := &Source{}
	for _, opt := range opts {
		opt(probe)
	}

	ts, err := google.NewTokenSource(ctx, account, provider, probe.metrics)
	if err != nil {
		return nil, err
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(google.NewHTTPClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	s := NewSourceWithService(svc, calendarID, opts...)
	s.account = account
	return s, nil
}

// NewSourceWithService wraps an existing Calendar service.
func NewSourceWithService(svc *gcal.Service, calendarID string, opts ...Option) *Source {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	s := &Source{
		svc:        svc,
		calendarID: calendarID,
		account:    google.DefaultAccount,
		lookBehind: DefaultLookBehind,
		lookAhead:  DefaultLookAhead,
		now:        time.Now,
		logger:     logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Account returns the account name this source is associated with
func (s *Source) Account() string {
	return s.account
}

// CalendarID returns the calendar the source reads and writes.
func (s *Source) CalendarID() string {
	return s.calendarID
}

func (s *Source) observe(ctx context.Context, op, eventID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := instrumentation.StartSourceSpan(ctx, instrumentation.SourceGoogle, op,
		instrumentation.NewSpanAttributeBuilder().WithEventID(eventID).Build()...)
	defer span.End()

	err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordSourceOperation(ctx, instrumentation.SourceGoogle, op, status, time.Since(start))
	return err
}

// Events lists the timed events in the window around now, ordered by start.
func (s *Source) Events(ctx context.Context) ([]models.Event, error) {
	now := s.now()
	var out []models.Event
	err := s.observe(ctx, instrumentation.OperationList, "", func(ctx context.Context) error {
		call := s.svc.Events.List(s.calendarID).
			TimeMin(now.Add(-s.lookBehind).Format(time.RFC3339)).
			TimeMax(now.Add(s.lookAhead).Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)

		return call.Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				if isAllDay(item) {
					continue
				}
				ev, err := toEvent(item)
				if err != nil {
					s.logger.Warn("skipping unreadable event", logging.KeyEventID, item.Id, logging.KeyError, err)
					continue
				}
				out = append(out, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events in calendar %s: %w", s.calendarID, err)
	}
	return out, nil
}

// UpdateEvent moves or resizes an event.
func (s *Source) UpdateEvent(ctx context.Context, id string, patch models.Patch) (models.Event, error) {
	if patch.IsEmpty() {
		return models.Event{}, fmt.Errorf("empty patch for event %s", id)
	}
	var ev models.Event
	err := s.observe(ctx, instrumentation.OperationUpdate, id, func(ctx context.Context) error {
		updated, err := s.svc.Events.Patch(s.calendarID, id, fromPatch(patch)).Context(ctx).Do()
		if err != nil {
			return mapError(id, err)
		}
		ev, err = toEvent(updated)
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Debug("event updated", logging.KeyEventID, id, logging.KeySource, models.SourceGoogle)
	return ev, nil
}

// CreateEvent inserts a new event.
func (s *Source) CreateEvent(ctx context.Context, draft models.Draft) (models.Event, error) {
	if !draft.Range().Valid() {
		return models.Event{}, fmt.Errorf("%w: end must be after start", conflict.ErrInvalidProposal)
	}
	var ev models.Event
	err := s.observe(ctx, instrumentation.OperationCreate, "", func(ctx context.Context) error {
		created, err := s.svc.Events.Insert(s.calendarID, fromDraft(draft)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		ev, err = toEvent(created)
		return err
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Info("event created", logging.KeyEventID, ev.ID, logging.KeySource, models.SourceGoogle)
	return ev, nil
}

// DeleteEvent removes an event. Missing events yield conflict.ErrEventNotFound.
func (s *Source) DeleteEvent(ctx context.Context, id string) error {
	err := s.observe(ctx, instrumentation.OperationDelete, id, func(ctx context.Context) error {
		if err := s.svc.Events.Delete(s.calendarID, id).Context(ctx).Do(); err != nil {
			return mapError(id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("event deleted", logging.KeyEventID, id, logging.KeySource, models.SourceGoogle)
	return nil
}

func mapError(id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", conflict.ErrEventNotFound, id)
	}
	return fmt.Errorf("event %s: %w", id, err)
}
