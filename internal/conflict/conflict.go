package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/timegrid"
)

// CandidateID names the proposed range in a Resolution.
const CandidateID = "candidate"

var (
	// ErrResolutionRejected is returned when the decider declines to resolve.
	ErrResolutionRejected = errors.New("conflict resolution rejected")

	// ErrInvalidResolution is returned when a resolution does not fit its set.
	ErrInvalidResolution = errors.New("invalid conflict resolution")

	// ErrNoDecider is returned when conflicts exist and no decider is set.
	ErrNoDecider = errors.New("conflicts found and no decider configured")

	// ErrEventNotFound is returned when the event being updated does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidProposal is returned for proposals without a valid range.
	ErrInvalidProposal = errors.New("invalid proposal")
)

// EventSource is the persistence collaborator.
type EventSource interface {
	Events(ctx context.Context) ([]models.Event, error)
	UpdateEvent(ctx context.Context, id string, patch models.Patch) (models.Event, error)
	CreateEvent(ctx context.Context, draft models.Draft) (models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Set is a candidate range and the events it overlaps.
type Set struct {
	Candidate models.Range
	Conflicts []models.Event
}

// Empty reports whether nothing conflicts.
func (s Set) Empty() bool {
	return len(s.Conflicts) == 0
}

// IDs returns the conflicting event ids in order.
func (s Set) IDs() []string {
	ids := make([]string, len(s.Conflicts))
	for i, ev := range s.Conflicts {
		ids[i] = ev.ID
	}
	return ids
}

// Contains reports whether id is one of the conflicting events.
func (s Set) Contains(id string) bool {
	for _, ev := range s.Conflicts {
		if ev.ID == id {
			return true
		}
	}
	return false
}

// Detect returns the events strictly overlapping candidate, ordered by start
// time. The event named excludeID and cancelled events are skipped.
func Detect(candidate models.Range, events []models.Event, excludeID string) Set {
	set := Set{Candidate: candidate}
	for _, ev := range events {
		if ev.ID == excludeID && excludeID != "" {
			continue
		}
		if ev.Cancelled() {
			continue
		}
		if timegrid.RangesOverlap(candidate, ev.Range()) {
			set.Conflicts = append(set.Conflicts, ev.Clone())
		}
	}
	sort.SliceStable(set.Conflicts, func(i, j int) bool {
		return set.Conflicts[i].Start.Before(set.Conflicts[j].Start)
	})
	return set
}

// Resolution is the decision for a conflict set: the one event to keep and the
// conflicting events to delete.
type Resolution struct {
	KeepID     string   `json:"keep"`
	DiscardIDs []string `json:"discard,omitempty"`
}

// KeepsCandidate reports whether the proposed change survives.
func (r Resolution) KeepsCandidate() bool {
	return r.KeepID == CandidateID
}

// Validate checks r against s. KeepID must be the candidate or a conflict, and
// every discard must be a distinct conflict other than the kept one.
func (r Resolution) Validate(s Set) error {
	if r.KeepID == "" {
		return fmt.Errorf("%w: keep is required", ErrInvalidResolution)
	}
	if !r.KeepsCandidate() && !s.Contains(r.KeepID) {
		return fmt.Errorf("%w: %q is not in the conflict set", ErrInvalidResolution, r.KeepID)
	}

	seen := make(map[string]bool, len(r.DiscardIDs))
	for _, id := range r.DiscardIDs {
		switch {
		case id == r.KeepID:
			return fmt.Errorf("%w: %q is both kept and discarded", ErrInvalidResolution, id)
		case seen[id]:
			return fmt.Errorf("%w: %q discarded twice", ErrInvalidResolution, id)
		case !s.Contains(id):
			return fmt.Errorf("%w: cannot discard %q, it does not conflict", ErrInvalidResolution, id)
		}
		seen[id] = true
	}
	return nil
}

// Decider chooses how to resolve a non-empty conflict set.
type Decider interface {
	Decide(ctx context.Context, set Set) (Resolution, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, set Set) (Resolution, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, set Set) (Resolution, error) {
	return f(ctx, set)
}

// KeepCandidate is a Decider that keeps the proposed change and deletes every
// conflicting event.
var KeepCandidate = DeciderFunc(func(_ context.Context, set Set) (Resolution, error) {
	return Resolution{KeepID: CandidateID, DiscardIDs: set.IDs()}, nil
})

// Reject is a Decider that refuses every conflict.
var Reject = DeciderFunc(func(context.Context, Set) (Resolution, error) {
	return Resolution{}, ErrResolutionRejected
})

// Static answers every conflict set with the same choice. With neither keep
// nor discard it rejects. An empty keep means CandidateID, and keeping the
// candidate without a discard list discards every conflict.
func Static(keep string, discard []string) Decider {
	if keep == "" && len(discard) == 0 {
		return Reject
	}
	if keep == "" {
		keep = CandidateID
	}
	discard = append([]string(nil), discard...)
	return DeciderFunc(func(_ context.Context, set Set) (Resolution, error) {
		res := Resolution{KeepID: keep, DiscardIDs: discard}
		if keep == CandidateID && len(discard) == 0 {
			res.DiscardIDs = set.IDs()
		}
		return res, nil
	})
}
