package pending

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

// History actions, used as metric labels.
const (
	ActionAdd     = "add"
	ActionDiscard = "discard"
	ActionUndo    = "undo"
	ActionRedo    = "redo"
	ActionCommit  = "commit"
	ActionClear   = "clear"
)

var (
	// ErrEmptyID is returned by Add for an empty event id.
	ErrEmptyID = errors.New("event id is required")

	// ErrEmptyPatch is returned by Add for a patch that changes nothing.
	ErrEmptyPatch = errors.New("patch is empty")
)

// Clock returns the current time.
type Clock func() time.Time

// HistoryEntry is a snapshot of the whole pending map.
type HistoryEntry struct {
	Changes map[string]models.Patch
	At      time.Time
}

type memoEntry struct {
	baseStart time.Time
	baseEnd   time.Time
	patch     models.Patch
	result    models.Range
}

// Store holds pending changes keyed by event id.
type Store struct {
	clock   Clock
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu      sync.Mutex
	pending map[string]models.Patch
	history []HistoryEntry
	cursor  int
	memo    map[string]memoEntry
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock stamped on history entries.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records the pending gauge and history operations.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:   time.Now,
		logger:  slog.Default(),
		pending: make(map[string]models.Patch),
		cursor:  -1,
		memo:    make(map[string]memoEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "pending")
	return s
}

// Add merges patch into the pending change for eventID and records a
// history snapshot.
func (s *Store) Add(eventID string, patch models.Patch) error {
	if eventID == "" {
		return ErrEmptyID
	}
	if patch.IsEmpty() {
		return ErrEmptyPatch
	}

	s.mu.Lock()
	s.pending[eventID] = s.pending[eventID].Merge(patch)
	delete(s.memo, eventID)
	s.pushLocked()
	n := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug("pending change added", logging.EventID(eventID), slog.Int("pending", n))
	s.record(ActionAdd, n)
	return nil
}

// pushLocked drops the redo tail and appends a snapshot of pending.
func (s *Store) pushLocked() {
	s.history = append(s.history[:s.cursor+1], HistoryEntry{
		Changes: copyChanges(s.pending),
		At:      s.clock(),
	})
	s.cursor = len(s.history) - 1
}

// Overlay returns event with its pending patch applied. Events without a
// pending change are returned as a copy.
func (s *Store) Overlay(event models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayLocked(event)
}

func (s *Store) overlayLocked(event models.Event) models.Event {
	patch, ok := s.pending[event.ID]
	if !ok {
		return event.Clone()
	}

	if m, ok := s.memo[event.ID]; ok &&
		m.baseStart.Equal(event.Start) && m.baseEnd.Equal(event.End) && m.patch.Equal(patch) {
		out := event.Clone()
		out.Start, out.End = m.result.Start, m.result.End
		return out
	}

	out := patch.Apply(event)
	s.memo[event.ID] = memoEntry{
		baseStart: event.Start,
		baseEnd:   event.End,
		patch:     patch.Clone(),
		result:    out.Range(),
	}
	return out
}

// OverlayAll applies Overlay to every event.
func (s *Store) OverlayAll(events []models.Event) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Event, len(events))
	for i, ev := range events {
		out[i] = s.overlayLocked(ev)
	}
	return out
}

// Undo steps the history back. At the first entry it clears pending and
// leaves the cursor before the history. It reports whether anything changed.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.history) == 0 || s.cursor < 0 {
		s.mu.Unlock()
		return false
	}
	if s.cursor > 0 {
		s.cursor--
		s.pending = copyChanges(s.history[s.cursor].Changes)
	} else {
		s.cursor = -1
		s.pending = make(map[string]models.Patch)
	}
	s.memo = make(map[string]memoEntry)
	n := len(s.pending)
	s.mu.Unlock()

	s.record(ActionUndo, n)
	return true
}

// Redo re-applies the snapshot after the cursor.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if s.cursor+1 >= len(s.history) {
		s.mu.Unlock()
		return false
	}
	s.cursor++
	s.pending = copyChanges(s.history[s.cursor].Changes)
	s.memo = make(map[string]memoEntry)
	n := len(s.pending)
	s.mu.Unlock()

	s.record(ActionRedo, n)
	return true
}

// Discard drops the pending change for eventID as an undoable step.
func (s *Store) Discard(eventID string) bool {
	s.mu.Lock()
	if _, ok := s.pending[eventID]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, eventID)
	delete(s.memo, eventID)
	s.pushLocked()
	n := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug("pending change discarded", logging.EventID(eventID))
	s.record(ActionDiscard, n)
	return true
}

// Committed forgets eventID after it was persisted, including every history
// snapshot, so undo can never resurrect a change that is already stored.
func (s *Store) Committed(eventID string) {
	s.mu.Lock()
	_, had := s.pending[eventID]
	delete(s.pending, eventID)
	delete(s.memo, eventID)
	for _, h := range s.history {
		delete(h.Changes, eventID)
	}
	n := len(s.pending)
	s.mu.Unlock()

	if had {
		s.record(ActionCommit, n)
	}
}

// Clear empties pending changes and history.
func (s *Store) Clear() {
	s.mu.Lock()
	s.pending = make(map[string]models.Patch)
	s.history = nil
	s.cursor = -1
	s.memo = make(map[string]memoEntry)
	s.mu.Unlock()

	s.record(ActionClear, 0)
}

// HasPendingChanges reports whether any change is buffered.
func (s *Store) HasPendingChanges() bool {
	return s.Len() > 0
}

// Len returns the number of events with pending changes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CanUndo reports whether Undo would change anything.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 0 && s.cursor >= 0
}

// CanRedo reports whether Redo would change anything.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor+1 < len(s.history)
}

// Get returns a copy of the pending patch for eventID.
func (s *Store) Get(eventID string) (models.Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[eventID]
	return p.Clone(), ok
}

// Pending returns a copy of the pending map.
func (s *Store) Pending() map[string]models.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyChanges(s.pending)
}

// IDs returns the ids with pending changes in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// History returns copies of every snapshot and the cursor position.
func (s *Store) History() ([]HistoryEntry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HistoryEntry, len(s.history))
	for i, h := range s.history {
		out[i] = HistoryEntry{Changes: copyChanges(h.Changes), At: h.At}
	}
	return out, s.cursor
}

func (s *Store) record(action string, pendingCount int) {
	ctx := context.Background()
	s.metrics.RecordHistoryOperation(ctx, action)
	s.metrics.SetPendingChanges(ctx, pendingCount)
}

func copyChanges(in map[string]models.Patch) map[string]models.Patch {
	out := make(map[string]models.Patch, len(in))
	for id, p := range in {
		out[id] = p.Clone()
	}
	return out
}
