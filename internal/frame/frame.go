package frame

import (
	"sync"
	"time"
)

// DefaultInterval is the Ticker frame interval when none is given.
const DefaultInterval = 16 * time.Millisecond

// Token identifies a scheduled callback. The zero Token is never issued.
type Token uint64

// Scheduler defers a callback to the next frame.
//
// Implementations must not run fn synchronously from Schedule: callers may
// hold their own lock while scheduling.
type Scheduler interface {
	Schedule(fn func()) Token
	Cancel(tok Token)
}

// Manual is a deterministic Scheduler. Callbacks only run from Flush.
type Manual struct {
	mu    sync.Mutex
	next  Token
	order []Token
	live  map[Token]func()
}

// NewManual creates an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{live: make(map[Token]func())}
}

// Schedule queues fn for the next Flush.
func (m *Manual) Schedule(fn func()) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.live[m.next] = fn
	m.order = append(m.order, m.next)
	return m.next
}

// Cancel drops a queued callback.
func (m *Manual) Cancel(tok Token) {
	m.mu.Lock()
	delete(m.live, tok)
	m.mu.Unlock()
}

// Flush runs one frame: every live callback scheduled before the call, in
// scheduling order. Callbacks scheduled while flushing wait for the next
// frame. It returns the number of callbacks run.
func (m *Manual) Flush() int {
	m.mu.Lock()
	order := m.order
	m.order = nil
	fns := make([]func(), 0, len(order))
	for _, tok := range order {
		if fn, ok := m.live[tok]; ok {
			fns = append(fns, fn)
			delete(m.live, tok)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of callbacks waiting for a frame.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Ticker is a wall-clock Scheduler backed by time.AfterFunc.
type Ticker struct {
	interval time.Duration
	dispatch func(func())

	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
	closed bool
}

// NewTicker creates a Ticker. A non-positive interval uses DefaultInterval.
// dispatch, when non-nil, receives every due callback so the host can run it
// on its own loop; otherwise callbacks run on the timer goroutine.
func NewTicker(interval time.Duration, dispatch func(func())) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Ticker{
		interval: interval,
		dispatch: dispatch,
		timers:   make(map[Token]*time.Timer),
	}
}

// Interval returns the frame interval.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Schedule arms a timer for fn. After Close it returns the zero Token and
// fn never runs.
func (t *Ticker) Schedule(fn func()) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}
	t.next++
	tok := t.next
	t.timers[tok] = time.AfterFunc(t.interval, func() { t.fire(tok, fn) })
	return tok
}

func (t *Ticker) fire(tok Token, fn func()) {
	t.mu.Lock()
	_, ok := t.timers[tok]
	delete(t.timers, tok)
	t.mu.Unlock()

	// Cancelled between the timer firing and acquiring the lock.
	if !ok {
		return
	}
	t.dispatch(fn)
}

// Cancel stops a pending timer.
func (t *Ticker) Cancel(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[tok]; ok {
		timer.Stop()
		delete(t.timers, tok)
	}
}

// Pending returns the number of armed timers.
func (t *Ticker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Close stops every pending timer and rejects further scheduling.
func (t *Ticker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tok, timer := range t.timers {
		timer.Stop()
		delete(t.timers, tok)
	}
	t.closed = true
}
