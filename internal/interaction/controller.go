package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pointer"
	"github.com/teemow/slotwise/internal/timegrid"
)

// Controller drives one gesture session at a time.
type Controller struct {
	grid       timegrid.Grid
	guard      *Guard
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	onFinalize FinalizeFunc
	onPreview  PreviewFunc
	now        func() time.Time

	mu      sync.Mutex
	session *Session
}

// Option configures a Controller.
type Option func(*Controller)

// WithGuard shares a claim slot with other controllers.
func WithGuard(g *Guard) Option {
	return func(c *Controller) {
		if g != nil {
			c.guard = g
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records session and preview metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithFinalizeFunc registers the release consumer.
func WithFinalizeFunc(fn FinalizeFunc) Option {
	return func(c *Controller) {
		c.onFinalize = fn
	}
}

// WithPreviewFunc registers a preview observer.
func WithPreviewFunc(fn PreviewFunc) Option {
	return func(c *Controller) {
		c.onPreview = fn
	}
}

// WithClock overrides the session start clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates an idle controller for grid.
func NewController(grid timegrid.Grid, opts ...Option) *Controller {
	c := &Controller{
		grid:   grid.Normalize(),
		guard:  NewGuard(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "interaction")
	return c
}

// Grid returns the normalized grid the controller computes with.
func (c *Controller) Grid() timegrid.Grid {
	return c.grid
}

// Begin starts a gesture on event. A second Begin while a session is live is
// rejected with ErrSessionActive.
func (c *Controller) Begin(event models.Event, op models.Operation, origin pointer.Sample) error {
	if stateFor(op) == StateIdle {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}
	if event.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !event.Range().Valid() {
		return fmt.Errorf("%w: %s has an invalid range", ErrInvalidEvent, event.ID)
	}

	c.mu.Lock()
	if c.session != nil {
		active := c.session.EventID
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionActive, active)
	}
	if !c.guard.Claim(event.ID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionActive, c.guard.Holder())
	}
	c.session = &Session{
		EventID:       event.ID,
		Operation:     op,
		Original:      event.Range(),
		PointerOrigin: origin,
		LastSample:    origin,
		StartedAt:     c.now(),
	}
	c.mu.Unlock()

	c.metrics.RecordSessionStart(context.Background())
	c.logger.Debug("session started", logging.EventID(event.ID), logging.Operation(op.String()))
	return nil
}

// Move recomputes the preview for sample. It reports false when idle.
func (c *Controller) Move(sample pointer.Sample) (models.Range, bool) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return models.Range{}, false
	}
	preview := c.compute(s, sample)
	s.LastSample = sample
	s.Preview = preview
	s.HasPreview = true
	snapshot := *s
	fn := c.onPreview
	c.mu.Unlock()

	c.metrics.RecordPreviewFrame(context.Background(), snapshot.Operation.String())
	if fn != nil {
		fn(snapshot)
	}
	return preview, true
}

// compute derives the preview from the pointer delta against the origin.
func (c *Controller) compute(s *Session, sample pointer.Sample) models.Range {
	g := c.grid
	delta := time.Duration(g.YToMinutes(sample.Y, 0)-g.YToMinutes(s.PointerOrigin.Y, 0)) * time.Minute
	start := s.Original.Start.In(g.Location)
	end := s.Original.End.In(g.Location)

	switch s.Operation {
	case models.OperationDrag:
		days := g.XToColumn(sample.X, 0) - g.XToColumn(s.PointerOrigin.X, 0)
		snapped := timegrid.SnapMinutes(int(delta/time.Minute), g.SnapMinutes, timegrid.SnapNearest)
		newStart := timegrid.TruncateMinute(start).AddDate(0, 0, days).Add(time.Duration(snapped) * time.Minute)
		return models.Range{Start: newStart, End: newStart.Add(s.Original.Duration())}

	case models.OperationResizeStart:
		newStart := g.Snap(start.Add(delta), timegrid.SnapDown)
		newStart, end = timegrid.EnforceMinimumDuration(newStart, end, g.MinimumDuration, timegrid.EdgeStart)
		return models.Range{Start: newStart, End: end}

	default:
		newEnd := g.Snap(end.Add(delta), timegrid.SnapUp)
		start, newEnd = timegrid.EnforceMinimumDuration(start, newEnd, g.MinimumDuration, timegrid.EdgeEnd)
		return models.Range{Start: start, End: newEnd}
	}
}

// Release ends the session. When a preview exists the result is passed to
// the FinalizeFunc and returned with true. The session is discarded either way.
func (c *Controller) Release() (Finalized, bool) {
	s := c.end()
	if s == nil {
		return Finalized{}, false
	}

	if !s.HasPreview {
		c.metrics.RecordSessionEnd(context.Background(), s.Operation.String(), instrumentation.OutcomeEmpty)
		c.logger.Debug("session released without preview", logging.EventID(s.EventID))
		return Finalized{}, false
	}

	f := Finalized{
		EventID:   s.EventID,
		Operation: s.Operation,
		Original:  s.Original,
		Range:     s.Preview,
	}
	c.metrics.RecordSessionEnd(context.Background(), s.Operation.String(), instrumentation.OutcomeFinalized)
	c.logger.Debug("session finalized",
		logging.EventID(s.EventID),
		logging.Operation(s.Operation.String()),
		slog.String("range", f.Range.String()),
		slog.Duration(logging.KeyDuration, c.now().Sub(s.StartedAt)))

	c.mu.Lock()
	fn := c.onFinalize
	c.mu.Unlock()
	if fn != nil {
		fn(f)
	}
	return f, true
}

// Cancel abandons the session without emitting.
func (c *Controller) Cancel() bool {
	return c.abort(instrumentation.OutcomeCancelled)
}

// Reset is the teardown path: it abandons any live session and frees the claim.
func (c *Controller) Reset() {
	c.abort(instrumentation.OutcomeReset)
}

func (c *Controller) abort(outcome string) bool {
	s := c.end()
	if s == nil {
		return false
	}
	c.metrics.RecordSessionEnd(context.Background(), s.Operation.String(), outcome)
	c.logger.Debug("session "+outcome, logging.EventID(s.EventID))
	return true
}

func (c *Controller) end() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return nil
	}
	c.session = nil
	c.guard.Release(s.EventID)
	return s
}

// Session returns a copy of the live session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// State returns the current gesture state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return StateIdle
	}
	return stateFor(c.session.Operation)
}

// Preview returns the live preview range, if any.
func (c *Controller) Preview() (models.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || !c.session.HasPreview {
		return models.Range{}, false
	}
	return c.session.Preview, true
}

// Bind routes the tracker's per-frame samples to Move.
func (c *Controller) Bind(t *pointer.Tracker) {
	t.SetConsumer(func(s pointer.Sample) { c.Move(s) })
}
