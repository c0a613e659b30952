package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotwise/internal/frame"
)

func newTestTracker(t *testing.T) (*Tracker, *Feed, *frame.Manual, *[]Sample) {
	t.Helper()
	feed := NewFeed()
	sched := frame.NewManual()
	var got []Sample
	tr := NewTracker(feed, sched, func(s Sample) { got = append(got, s) })
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)
	return tr, feed, sched, &got
}

func TestTracker_CoalescesPerFrame(t *testing.T) {
	_, feed, sched, got := newTestTracker(t)

	feed.Push(Sample{Y: 10})
	feed.Push(Sample{Y: 20})
	feed.Push(Sample{Y: 30})

	assert.Equal(t, 1, sched.Pending(), "at most one frame pending")
	sched.Flush()
	require.Len(t, *got, 1)
	assert.Equal(t, 30.0, (*got)[0].Y, "last write wins")

	feed.Push(Sample{Y: 40})
	sched.Flush()
	require.Len(t, *got, 2)
	assert.Equal(t, 40.0, (*got)[1].Y)
}

func TestTracker_NoFrameWithoutSamples(t *testing.T) {
	_, _, sched, got := newTestTracker(t)
	assert.Equal(t, 0, sched.Flush())
	assert.Empty(t, *got)
}

func TestTracker_StopCancelsPendingFrame(t *testing.T) {
	tr, feed, sched, got := newTestTracker(t)

	feed.Push(Sample{Y: 10})
	tr.Stop()

	assert.Equal(t, 0, sched.Pending())
	sched.Flush()
	assert.Empty(t, *got)
	assert.Equal(t, 0, feed.Subscribers())

	feed.Push(Sample{Y: 99})
	assert.Equal(t, 0, sched.Pending(), "stopped tracker ignores samples")
}

func TestTracker_StaleCallbackDoesNotDeliver(t *testing.T) {
	feed := NewFeed()
	sched := &capturingScheduler{}
	var got []Sample
	tr := NewTracker(feed, sched, func(s Sample) { got = append(got, s) })
	require.NoError(t, tr.Start())

	feed.Push(Sample{Y: 1})
	require.Len(t, sched.fns, 1)
	stale := sched.fns[0]

	tr.Stop()
	require.NoError(t, tr.Start())
	feed.Push(Sample{Y: 2})

	// A callback from before Stop runs late: it must not deliver.
	stale()
	assert.Empty(t, got)

	sched.fns[1]()
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Y)
}

func TestTracker_Flush(t *testing.T) {
	tr, feed, sched, got := newTestTracker(t)

	assert.False(t, tr.Flush())
	feed.Push(Sample{Y: 5})
	assert.True(t, tr.Flush())
	require.Len(t, *got, 1)
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, sched.Flush())
}

func TestTracker_LatestAndRestart(t *testing.T) {
	tr, feed, _, _ := newTestTracker(t)

	_, ok := tr.Latest()
	assert.False(t, ok)
	feed.Push(Sample{X: 3, Y: 4})
	s, ok := tr.Latest()
	assert.True(t, ok)
	assert.Equal(t, Sample{X: 3, Y: 4}, s)

	require.NoError(t, tr.Start(), "start while running is a no-op")
	assert.Equal(t, 1, feed.Subscribers())
	assert.True(t, tr.Running())
}

func TestTracker_StartAfterClose(t *testing.T) {
	tr := NewTracker(NewFeed(), frame.NewManual(), nil)
	tr.Close()
	assert.ErrorIs(t, tr.Start(), ErrClosed)
}

func TestTracker_SetConsumer(t *testing.T) {
	tr, feed, sched, got := newTestTracker(t)

	var other []Sample
	tr.SetConsumer(func(s Sample) { other = append(other, s) })
	feed.Push(Sample{Y: 1})
	sched.Flush()

	assert.Empty(t, *got)
	assert.Len(t, other, 1)
}

func TestFeed_Unsubscribe(t *testing.T) {
	feed := NewFeed()
	n := 0
	unsub := feed.Subscribe(func(Sample) { n++ })
	feed.Push(Sample{})
	unsub()
	unsub()
	feed.Push(Sample{})

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, feed.Subscribers())
}

// capturingScheduler records callbacks without ever running them, so tests
// can run them out of order.
type capturingScheduler struct {
	fns []func()
}

func (c *capturingScheduler) Schedule(fn func()) frame.Token {
	c.fns = append(c.fns, fn)
	return frame.Token(len(c.fns))
}

func (c *capturingScheduler) Cancel(frame.Token) {}
