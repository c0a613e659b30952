package frame

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FlushRunsInOrder(t *testing.T) {
	m := NewManual()
	var got []int
	m.Schedule(func() { got = append(got, 1) })
	m.Schedule(func() { got = append(got, 2) })

	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, 2, m.Flush())
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, 0, m.Flush(), "second flush has nothing to run")
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual()
	ran := false
	tok := m.Schedule(func() { ran = true })
	m.Cancel(tok)
	m.Cancel(tok)   // already cancelled
	m.Cancel(12345) // never issued

	assert.Equal(t, 0, m.Flush())
	assert.False(t, ran)
}

func TestManual_ScheduleDuringFlushWaitsForNextFrame(t *testing.T) {
	m := NewManual()
	frames := 0
	var reschedule func()
	reschedule = func() {
		frames++
		if frames < 3 {
			m.Schedule(reschedule)
		}
	}
	m.Schedule(reschedule)

	assert.Equal(t, 1, m.Flush())
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, m.Pending())
	m.Flush()
	m.Flush()
	assert.Equal(t, 3, frames)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_TokensAreUnique(t *testing.T) {
	m := NewManual()
	a := m.Schedule(func() {})
	b := m.Schedule(func() {})
	assert.NotEqual(t, Token(0), a)
	assert.NotEqual(t, a, b)
}

func TestTicker_Fires(t *testing.T) {
	tk := NewTicker(time.Millisecond, nil)
	defer tk.Close()

	done := make(chan struct{})
	tk.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not fire")
	}
	assert.Eventually(t, func() bool { return tk.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestTicker_CancelPreventsFire(t *testing.T) {
	tk := NewTicker(20*time.Millisecond, nil)
	defer tk.Close()

	var fired atomic.Bool
	tok := tk.Schedule(func() { fired.Store(true) })
	tk.Cancel(tok)

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 0, tk.Pending())
}

func TestTicker_Dispatcher(t *testing.T) {
	loop := make(chan func(), 1)
	tk := NewTicker(time.Millisecond, func(fn func()) { loop <- fn })
	defer tk.Close()

	var ran atomic.Bool
	tk.Schedule(func() { ran.Store(true) })

	select {
	case fn := <-loop:
		assert.False(t, ran.Load(), "dispatcher must receive the callback before it runs")
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher not called")
	}
	assert.True(t, ran.Load())
}

func TestTicker_Close(t *testing.T) {
	tk := NewTicker(0, nil)
	require.Equal(t, DefaultInterval, tk.Interval())

	var fired atomic.Bool
	tk.Schedule(func() { fired.Store(true) })
	tk.Close()

	assert.Equal(t, Token(0), tk.Schedule(func() { fired.Store(true) }))
	time.Sleep(3 * DefaultInterval)
	assert.False(t, fired.Load())
}
