package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

// DefaultPath is the store location when none is configured.
const DefaultPath = "~/.slotwise/events"

var _ conflict.EventSource = (*Store)(nil)

// ErrInvalidID is returned for ids that cannot name a file inside the store.
var ErrInvalidID = errors.New("invalid event id")

// checkID rejects ids that would escape the store directory or that diskv
// cannot use as a file name.
func checkID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidID, id)
	}
	return nil
}

// Store persists events in a directory.
type Store struct {
	d        *diskv.Diskv
	basePath string
	logger   logging.Logger
	metrics  *instrumentation.Metrics
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records event source metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Open opens or creates a store at basePath. A leading ~ is expanded.
func Open(basePath string, opts ...Option) (*Store, error) {
	path, err := ExpandPath(basePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", path, err)
	}

	s := &Store{
		d: diskv.New(diskv.Options{
			BasePath:     path,
			CacheSizeMax: 1024 * 1024, // 1MB
			PathPerm:     0o755,
			FilePerm:     0o644,
		}),
		basePath: path,
		logger:   logging.DefaultLogger(),
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return home + path[1:], nil
	}
	return path, nil
}

// Path returns the resolved store directory.
func (s *Store) Path() string {
	return s.basePath
}

// observe wraps a source call in a span and records its metrics.
func (s *Store) observe(ctx context.Context, op, eventID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := instrumentation.StartSourceSpan(ctx, instrumentation.SourceLocal, op,
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
	s.metrics.RecordSourceOperation(ctx, instrumentation.SourceLocal, op, status, time.Since(start))
	return err
}

// Events returns every stored event ordered by start time. Unreadable
// records are logged and skipped.
func (s *Store) Events(ctx context.Context) ([]models.Event, error) {
	var out []models.Event
	err := s.observe(ctx, instrumentation.OperationList, "", func(ctx context.Context) error {
		for key := range s.d.Keys(ctx.Done()) {
			ev, err := s.read(key)
			if err != nil {
				s.logger.Warn("skipping unreadable event", logging.KeyEventID, key, logging.KeyError, err)
				continue
			}
			out = append(out, ev)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	sortEvents(out)
	return out, nil
}

// Get returns one event.
func (s *Store) Get(ctx context.Context, id string) (models.Event, error) {
	var ev models.Event
	err := s.observe(ctx, instrumentation.OperationGet, id, func(context.Context) error {
		var err error
		ev, err = s.mustRead(id)
		return err
	})
	return ev, err
}

// UpdateEvent applies patch to the stored event.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch models.Patch) (models.Event, error) {
	var ev models.Event
	err := s.observe(ctx, instrumentation.OperationUpdate, id, func(context.Context) error {
		cur, err := s.mustRead(id)
		if err != nil {
			return err
		}
		ev = patch.Apply(cur)
		if err := ev.Validate(); err != nil {
			return err
		}
		return s.write(ev)
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Debug("event updated", logging.KeyEventID, id)
	return ev, nil
}

// CreateEvent stores a new event built from draft.
func (s *Store) CreateEvent(ctx context.Context, draft models.Draft) (models.Event, error) {
	ev := models.Event{
		ID:        s.newID(),
		Title:     draft.Title,
		Start:     draft.Start,
		End:       draft.End,
		EventType: draft.EventType,
		Status:    draft.Status,
		Source:    models.SourceLocal,
		Contact:   draft.Contact,
	}
	if ev.Status == "" {
		ev.Status = models.StatusConfirmed
	}

	err := s.observe(ctx, instrumentation.OperationCreate, ev.ID, func(context.Context) error {
		if err := ev.Validate(); err != nil {
			return err
		}
		return s.write(ev)
	})
	if err != nil {
		return models.Event{}, err
	}
	s.logger.Debug("event created", logging.KeyEventID, ev.ID)
	return ev.Clone(), nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	err := s.observe(ctx, instrumentation.OperationDelete, id, func(context.Context) error {
		if err := checkID(id); err != nil {
			return fmt.Errorf("%w: %w", conflict.ErrEventNotFound, err)
		}
		if !s.d.Has(id) {
			return fmt.Errorf("%w: %s", conflict.ErrEventNotFound, id)
		}
		return s.d.Erase(id)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("event deleted", logging.KeyEventID, id)
	return nil
}

// Put stores ev under its own id, replacing any existing record.
func (s *Store) Put(ev models.Event) error {
	if err := checkID(ev.ID); err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	return s.write(ev)
}

func (s *Store) mustRead(id string) (models.Event, error) {
	if err := checkID(id); err != nil {
		return models.Event{}, fmt.Errorf("%w: %w", conflict.ErrEventNotFound, err)
	}
	if !s.d.Has(id) {
		return models.Event{}, fmt.Errorf("%w: %s", conflict.ErrEventNotFound, id)
	}
	return s.read(id)
}

func (s *Store) read(key string) (models.Event, error) {
	data, err := s.d.Read(key)
	if err != nil {
		return models.Event{}, err
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.Event{}, fmt.Errorf("failed to decode event %s: %w", key, err)
	}
	ev.ID = key
	return ev, nil
}

func (s *Store) write(ev models.Event) error {
	if err := checkID(ev.ID); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.d.Write(ev.ID, data); err != nil {
		return fmt.Errorf("failed to write event %s: %w", ev.ID, err)
	}
	return nil
}

func sortEvents(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
}
