package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/frame"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/interaction"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pending"
	"github.com/teemow/slotwise/internal/pointer"
	"github.com/teemow/slotwise/internal/timegrid"
)

// Mode selects when finalized gestures are committed.
type Mode string

const (
	ModeBuffered  Mode = "buffered"
	ModeImmediate Mode = "immediate"
)

// ParseMode parses a mode name. Empty means ModeBuffered.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBuffered:
		return ModeBuffered, nil
	case ModeImmediate:
		return ModeImmediate, nil
	default:
		return "", fmt.Errorf("unknown commit mode %q (expected %s or %s)", s, ModeBuffered, ModeImmediate)
	}
}

var (
	// ErrNoPendingChange is returned when committing an id with nothing pending.
	ErrNoPendingChange = errors.New("no pending change for event")

	// ErrNoSource is returned by New without an event source.
	ErrNoSource = errors.New("event source is required")
)

// Config holds engine dependencies. Only Source is required.
type Config struct {
	Grid    timegrid.Grid
	Mode    Mode
	Source  conflict.EventSource
	Decider conflict.Decider

	// SourceName labels audit records (local, google).
	SourceName string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger

	// Scheduler defaults to a frame.Ticker.
	Scheduler frame.Scheduler

	// Pointer defaults to a new pointer.Feed, available from Feed().
	Pointer pointer.Source

	// OnCommit observes every commit attempt.
	OnCommit func(Result)

	Clock pending.Clock
}

// Result is the outcome of one commit attempt.
type Result struct {
	EventID string
	Event   *models.Event
	Outcome conflict.Outcome
	Err     error
}

// OK reports whether the commit succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Engine is the scheduling engine.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	controller *interaction.Controller
	store      *pending.Store
	tracker    *pointer.Tracker
	workflow   *conflict.Workflow
	feed       *pointer.Feed
	ticker     *frame.Ticker
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBuffered
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		logger: logging.WithComponent(cfg.Logger, "engine"),
	}

	if cfg.Scheduler == nil {
		e.ticker = frame.NewTicker(frame.DefaultInterval, nil)
		cfg.Scheduler = e.ticker
	}
	if cfg.Pointer == nil {
		e.feed = pointer.NewFeed()
		cfg.Pointer = e.feed
	}

	e.controller = interaction.NewController(cfg.Grid,
		interaction.WithLogger(cfg.Logger),
		interaction.WithMetrics(cfg.Metrics))
	e.store = pending.New(
		pending.WithClock(cfg.Clock),
		pending.WithLogger(cfg.Logger),
		pending.WithMetrics(cfg.Metrics))
	e.tracker = pointer.NewTracker(cfg.Pointer, cfg.Scheduler, nil)
	e.controller.Bind(e.tracker)
	e.workflow = &conflict.Workflow{
		Source:  cfg.Source,
		Decider: cfg.Decider,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	}
	e.cfg = cfg
	return e, nil
}

// Controller returns the gesture controller.
func (e *Engine) Controller() *interaction.Controller { return e.controller }

// Store returns the pending-change store.
func (e *Engine) Store() *pending.Store { return e.store }

// Tracker returns the pointer tracker.
func (e *Engine) Tracker() *pointer.Tracker { return e.tracker }

// Feed returns the engine-owned pointer feed, or nil when Config.Pointer was set.
func (e *Engine) Feed() *pointer.Feed { return e.feed }

// Mode returns the commit mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// View returns the source events with pending changes applied.
func (e *Engine) View(ctx context.Context) ([]models.Event, error) {
	events, err := e.cfg.Source.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return e.store.OverlayAll(events), nil
}

// Begin starts a gesture on eventID as currently displayed, pending changes
// included, and starts tracking the pointer.
func (e *Engine) Begin(ctx context.Context, eventID string, op models.Operation, origin pointer.Sample) error {
	view, err := e.View(ctx)
	if err != nil {
		return err
	}
	for _, ev := range view {
		if ev.ID != eventID {
			continue
		}
		if err := e.controller.Begin(ev, op, origin); err != nil {
			return err
		}
		if err := e.tracker.Start(); err != nil {
			e.controller.Reset()
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", conflict.ErrEventNotFound, eventID)
}

// Release ends the gesture. A changed range is added to the pending store and,
// in ModeImmediate, committed. It reports false when nothing changed.
func (e *Engine) Release(ctx context.Context) (Result, bool) {
	// Apply a sample still waiting for its frame.
	e.tracker.Flush()
	e.tracker.Stop()

	f, ok := e.controller.Release()
	if !ok || !f.Changed() {
		return Result{EventID: f.EventID}, false
	}

	if err := e.store.Add(f.EventID, models.PatchFromRange(f.Range)); err != nil {
		return Result{EventID: f.EventID, Err: err}, true
	}
	if e.cfg.Mode == ModeImmediate {
		return e.CommitOne(ctx, f.EventID), true
	}
	return Result{EventID: f.EventID}, true
}

// Cancel abandons the gesture without touching the pending store.
func (e *Engine) Cancel() bool {
	e.tracker.Stop()
	return e.controller.Cancel()
}

// CommitOne persists the pending change for id. On failure the change stays
// pending.
func (e *Engine) CommitOne(ctx context.Context, id string) Result {
	patch, ok := e.store.Get(id)
	if !ok {
		return Result{EventID: id, Err: fmt.Errorf("%w: %s", ErrNoPendingChange, id)}
	}
	return e.commit(ctx, conflict.Proposal{EventID: id, Patch: patch})
}

// CommitAll commits every pending change in id order. Failures do not stop
// the remaining commits.
func (e *Engine) CommitAll(ctx context.Context) []Result {
	ids := e.store.IDs()
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		if _, ok := e.store.Get(id); !ok {
			// Deleted by an earlier conflict resolution.
			continue
		}
		results = append(results, e.CommitOne(ctx, id))
	}
	return results
}

// Create commits a new event, resolving conflicts like an update.
func (e *Engine) Create(ctx context.Context, draft models.Draft) Result {
	return e.commit(ctx, conflict.Proposal{Draft: &draft})
}

func (e *Engine) commit(ctx context.Context, p conflict.Proposal) Result {
	start := time.Now()
	op := p.Operation()

	ctx, span := instrumentation.StartCommitSpan(ctx, p.EventID, op)
	defer span.End()

	record := instrumentation.NewCommitRecord(p.EventID, op).WithSource(e.cfg.SourceName)

	out, err := e.workflow.Resolve(ctx, p)
	res := Result{EventID: p.EventID, Event: out.Event, Outcome: out, Err: err}
	if res.EventID == "" && out.Event != nil {
		res.EventID = out.Event.ID
	}

	// Events deleted during resolution no longer have anything to commit.
	for _, id := range out.Discarded() {
		e.store.Committed(id)
	}
	if err == nil && !p.IsCreate() {
		e.store.Committed(p.EventID)
	}

	eventType := ""
	if out.Previous != nil {
		eventType = out.Previous.EventType
		if c := out.Previous.Contact; c != nil {
			record.WithContact(c.Email, c.Phone)
		}
		if out.Event != nil {
			record.WithRanges(out.Previous.Start, out.Previous.End, out.Event.Start, out.Event.End)
		}
	} else if p.Draft != nil {
		eventType = p.Draft.EventType
		if c := p.Draft.Contact; c != nil {
			record.WithContact(c.Email, c.Phone)
		}
	}
	if !out.Conflicts.Empty() {
		record.WithConflicts(len(out.Conflicts.Conflicts), out.Discarded(), out.Status == conflict.StatusKeptExisting)
	}
	record.EventID = res.EventID
	record.WithSpanContext(ctx).Complete(err)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		e.logger.Warn("commit failed",
			logging.EventID(res.EventID),
			logging.Operation(op),
			slog.Int("pending", e.store.Len()),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
		e.logger.Info("commit succeeded",
			logging.EventID(res.EventID),
			logging.Operation(op),
			slog.String("outcome", string(out.Status)))
	}

	e.cfg.Metrics.RecordCommit(ctx, op, status, eventType, time.Since(start))
	e.cfg.Audit.LogCommit(record)
	if e.cfg.OnCommit != nil {
		e.cfg.OnCommit(res)
	}
	return res
}

// Discard drops the pending change for id.
func (e *Engine) Discard(id string) bool { return e.store.Discard(id) }

// Undo steps the pending history back.
func (e *Engine) Undo() bool { return e.store.Undo() }

// Redo steps the pending history forward.
func (e *Engine) Redo() bool { return e.store.Redo() }

// Clear drops every pending change and the history.
func (e *Engine) Clear() { e.store.Clear() }

// Close tears the engine down: pending frames are cancelled and a live
// session is reset. Pending changes are kept.
func (e *Engine) Close() {
	e.tracker.Close()
	e.controller.Reset()
	if e.ticker != nil {
		e.ticker.Close()
	}
}
