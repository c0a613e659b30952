package interaction

import (
	"errors"
	"sync"
	"time"

	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pointer"
)

// State is the controller's gesture state.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateResizingTop
	StateResizingBottom
)

func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateResizingTop:
		return "resizing-top"
	case StateResizingBottom:
		return "resizing-bottom"
	default:
		return "idle"
	}
}

func stateFor(op models.Operation) State {
	switch op {
	case models.OperationDrag:
		return StateDragging
	case models.OperationResizeStart:
		return StateResizingTop
	case models.OperationResizeEnd:
		return StateResizingBottom
	default:
		return StateIdle
	}
}

var (
	// ErrSessionActive is returned by Begin while another session is live.
	ErrSessionActive = errors.New("an interaction session is already active")

	// ErrUnknownOperation is returned by Begin for OperationNone or unknown values.
	ErrUnknownOperation = errors.New("unknown interaction operation")

	// ErrInvalidEvent is returned by Begin for an event without an id or with
	// an invalid range.
	ErrInvalidEvent = errors.New("invalid event")
)

// Session is the state of one in-progress gesture.
type Session struct {
	EventID       string
	Operation     models.Operation
	Original      models.Range
	Preview       models.Range
	HasPreview    bool
	PointerOrigin pointer.Sample
	LastSample    pointer.Sample
	StartedAt     time.Time
}

// Finalized is emitted on release when the session produced a preview.
type Finalized struct {
	EventID   string
	Operation models.Operation
	Original  models.Range
	Range     models.Range
}

// Changed reports whether the final range differs from the original.
func (f Finalized) Changed() bool {
	return !f.Range.Equal(f.Original)
}

// FinalizeFunc consumes a finalized gesture.
type FinalizeFunc func(Finalized)

// PreviewFunc observes every recomputed preview.
type PreviewFunc func(Session)

// Guard is a single-slot claim on the event being edited.
type Guard struct {
	mu     sync.Mutex
	holder string
}

// NewGuard creates an unclaimed guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Claim takes the slot for id. It fails while any id, including id itself,
// holds the slot.
func (g *Guard) Claim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" || id == "" {
		return false
	}
	g.holder = id
	return true
}

// Release frees the slot if id holds it.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == id {
		g.holder = ""
	}
}

// Holder returns the id holding the slot, or "".
func (g *Guard) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
