package pointer

import (
	"errors"
	"sync"
	"time"

	"github.com/teemow/slotwise/internal/frame"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("pointer tracker closed")

// Sample is one raw pointer position.
type Sample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	At time.Time `json:"at,omitempty"`
}

// Source delivers raw samples to subscribers. The returned func removes the
// subscription.
type Source interface {
	Subscribe(fn func(Sample)) (unsubscribe func())
}

// Feed is an in-process Source that hosts push samples into.
type Feed struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Sample)
}

// NewFeed creates a Feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func(Sample))}
}

// Subscribe registers fn for every pushed sample.
func (f *Feed) Subscribe(fn func(Sample)) func() {
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Push delivers s to every subscriber. Subscribers run outside the feed lock.
func (f *Feed) Push(s Sample) {
	f.mu.Lock()
	fns := make([]func(Sample), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Subscribers returns the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Tracker coalesces samples from a Source into one consumer call per frame.
type Tracker struct {
	src   Source
	sched frame.Scheduler

	mu          sync.Mutex
	consumer    func(Sample)
	latest      Sample
	hasLatest   bool
	token       frame.Token
	scheduled   bool
	generation  uint64
	unsubscribe func()
	closed      bool
}

// NewTracker creates a stopped tracker. consumer may be nil and set later
// with SetConsumer.
func NewTracker(src Source, sched frame.Scheduler, consumer func(Sample)) *Tracker {
	return &Tracker{
		src:      src,
		sched:    sched,
		consumer: consumer,
	}
}

// SetConsumer replaces the per-frame consumer.
func (t *Tracker) SetConsumer(fn func(Sample)) {
	t.mu.Lock()
	t.consumer = fn
	t.mu.Unlock()
}

// Start subscribes to the source. Starting a running tracker is a no-op.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.unsubscribe != nil {
		return nil
	}
	t.hasLatest = false
	t.unsubscribe = t.src.Subscribe(t.onSample)
	return nil
}

// Running reports whether the tracker is subscribed.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unsubscribe != nil
}

func (t *Tracker) onSample(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unsubscribe == nil {
		return
	}
	t.latest = s
	t.hasLatest = true
	if t.scheduled {
		return
	}

	t.generation++
	gen := t.generation
	t.scheduled = true
	t.token = t.sched.Schedule(func() { t.deliver(gen) })
}

func (t *Tracker) deliver(gen uint64) {
	t.mu.Lock()
	if !t.scheduled || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.scheduled = false
	t.token = 0
	s, fn := t.latest, t.consumer
	t.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Flush delivers a sample still waiting for its frame right away and cancels
// that frame. It reports whether anything was delivered.
func (t *Tracker) Flush() bool {
	t.mu.Lock()
	if !t.scheduled {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	s, fn := t.latest, t.consumer
	t.mu.Unlock()

	if fn != nil {
		fn(s)
	}
	return true
}

// cancelLocked drops the pending frame. Bumping the generation makes a
// callback that already escaped the scheduler a no-op.
func (t *Tracker) cancelLocked() {
	if t.scheduled {
		t.sched.Cancel(t.token)
	}
	t.scheduled = false
	t.token = 0
	t.generation++
}

// Latest returns the last raw sample seen since Start.
func (t *Tracker) Latest() (Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasLatest
}

// Stop unsubscribes and cancels the pending frame. The tracker can be
// started again.
func (t *Tracker) Stop() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.cancelLocked()
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Close stops the tracker for good.
func (t *Tracker) Close() {
	t.Stop()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}
