package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotwise/internal/batch"
	"github.com/teemow/slotwise/internal/models"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func rng(h1, m1, h2, m2 int) models.Range {
	return models.Range{Start: at(h1, m1), End: at(h2, m2)}
}

func ev(id string, r models.Range) models.Event {
	return models.Event{ID: id, Title: id, Start: r.Start, End: r.End, Status: models.StatusConfirmed}
}

// fakeSource is an in-memory EventSource that can fail individual calls.
type fakeSource struct {
	events  map[string]models.Event
	calls   []string
	failOn  map[string]error
	created int
}

func newFakeSource(events ...models.Event) *fakeSource {
	s := &fakeSource{events: map[string]models.Event{}, failOn: map[string]error{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *fakeSource) Events(context.Context) ([]models.Event, error) {
	if err := s.failOn["list"]; err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeSource) UpdateEvent(_ context.Context, id string, p models.Patch) (models.Event, error) {
	s.calls = append(s.calls, "update "+id)
	if err := s.failOn["update "+id]; err != nil {
		return models.Event{}, err
	}
	e, ok := s.events[id]
	if !ok {
		return models.Event{}, ErrEventNotFound
	}
	e = p.Apply(e)
	s.events[id] = e
	return e, nil
}

func (s *fakeSource) CreateEvent(_ context.Context, d models.Draft) (models.Event, error) {
	s.calls = append(s.calls, "create")
	if err := s.failOn["create"]; err != nil {
		return models.Event{}, err
	}
	s.created++
	e := models.Event{ID: fmt.Sprintf("new-%d", s.created), Title: d.Title, Start: d.Start, End: d.End}
	s.events[e.ID] = e
	return e, nil
}

func (s *fakeSource) DeleteEvent(_ context.Context, id string) error {
	s.calls = append(s.calls, "delete "+id)
	if err := s.failOn["delete "+id]; err != nil {
		return err
	}
	delete(s.events, id)
	return nil
}

func newWorkflow(src EventSource, d Decider) *Workflow {
	return &Workflow{Source: src, Decider: d, Logger: slog.New(slog.DiscardHandler)}
}

func TestDetect(t *testing.T) {
	events := []models.Event{
		ev("late", rng(10, 0, 11, 0)),
		ev("B", rng(9, 30, 10, 30)),
		ev("touching", rng(8, 0, 9, 15)),
		ev("self", rng(9, 0, 10, 0)),
	}
	cancelled := ev("gone", rng(9, 0, 12, 0))
	cancelled.Status = models.StatusCancelled
	events = append(events, cancelled)

	set := Detect(rng(9, 15, 10, 15), events, "self")
	assert.Equal(t, []string{"B", "late"}, set.IDs(), "ordered by start, touching, cancelled and self skipped")
	assert.False(t, set.Empty())
	assert.True(t, set.Contains("late"))
	assert.False(t, set.Contains("touching"))

	assert.True(t, Detect(rng(10, 30, 11, 30), []models.Event{ev("B", rng(9, 30, 10, 30))}, "A").Empty())
}

func TestDetect_Symmetric(t *testing.T) {
	a, b := rng(9, 0, 10, 0), rng(9, 59, 11, 0)
	ab := Detect(a, []models.Event{ev("b", b)}, "")
	ba := Detect(b, []models.Event{ev("a", a)}, "")
	assert.Equal(t, ab.Empty(), ba.Empty())
	assert.False(t, ab.Empty())
}

func TestResolution_Validate(t *testing.T) {
	set := Set{Conflicts: []models.Event{ev("B", rng(9, 0, 10, 0)), ev("C", rng(9, 30, 11, 0))}}

	tests := []struct {
		name    string
		res     Resolution
		wantErr bool
	}{
		{"keep candidate discard all", Resolution{KeepID: CandidateID, DiscardIDs: []string{"B", "C"}}, false},
		{"keep candidate discard none", Resolution{KeepID: CandidateID}, false},
		{"keep existing", Resolution{KeepID: "B", DiscardIDs: []string{"C"}}, false},
		{"empty keep", Resolution{}, true},
		{"unknown keep", Resolution{KeepID: "Z"}, true},
		{"discard kept", Resolution{KeepID: "B", DiscardIDs: []string{"B"}}, true},
		{"discard twice", Resolution{KeepID: CandidateID, DiscardIDs: []string{"B", "B"}}, true},
		{"discard non conflict", Resolution{KeepID: CandidateID, DiscardIDs: []string{"X"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Validate(set)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResolution)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	set := Set{Conflicts: []models.Event{{ID: "b"}, {ID: "c"}}}
	ctx := context.Background()

	tests := []struct {
		name    string
		keep    string
		discard []string
		want    Resolution
		wantErr error
	}{
		{"nothing rejects", "", nil, Resolution{}, ErrResolutionRejected},
		{"candidate alone discards all", CandidateID, nil, Resolution{KeepID: CandidateID, DiscardIDs: []string{"b", "c"}}, nil},
		{"discard alone keeps candidate", "", []string{"b"}, Resolution{KeepID: CandidateID, DiscardIDs: []string{"b"}}, nil},
		{"existing keeps without discards", "c", nil, Resolution{KeepID: "c"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Static(tt.keep, tt.discard).Decide(ctx, set)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, got.Validate(set))
		})
	}
}

func TestStatic_CopiesDiscardList(t *testing.T) {
	discard := []string{"b"}
	d := Static("", discard)
	discard[0] = "x"

	got, err := d.Decide(context.Background(), Set{Conflicts: []models.Event{{ID: "b"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.DiscardIDs)
}

func TestWorkflow_NoConflictCommitsDirectly(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)), ev("B", rng(9, 30, 10, 30)))
	w := newWorkflow(src, Reject)

	out, err := w.Resolve(context.Background(), Proposal{EventID: "A", Patch: models.PatchFromRange(rng(10, 30, 11, 30))})
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
	assert.True(t, out.Conflicts.Empty())
	require.NotNil(t, out.Event)
	assert.Equal(t, at(10, 30), out.Event.Start)
	require.NotNil(t, out.Previous)
	assert.Equal(t, at(9, 0), out.Previous.Start)
	assert.Equal(t, []string{"update A"}, src.calls)
}

func TestWorkflow_KeepCandidateDeletesThenUpdates(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)), ev("B", rng(9, 30, 10, 30)))
	w := newWorkflow(src, KeepCandidate)

	out, err := w.Resolve(context.Background(), Proposal{EventID: "A", Patch: models.PatchFromRange(rng(9, 15, 10, 15))})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, out.Status)
	assert.Equal(t, []string{"B"}, out.Conflicts.IDs())
	assert.Equal(t, []string{"delete B", "update A"}, src.calls)
	assert.Equal(t, []string{"B"}, out.Discarded())
	require.NotNil(t, out.Resolution)
	assert.NotContains(t, src.events, "B")
}

func TestWorkflow_KeepExisting(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)), ev("B", rng(9, 30, 10, 30)))
	w := newWorkflow(src, DeciderFunc(func(_ context.Context, set Set) (Resolution, error) {
		return Resolution{KeepID: "B"}, nil
	}))

	out, err := w.Resolve(context.Background(), Proposal{EventID: "A", Patch: models.PatchFromRange(rng(9, 15, 10, 15))})
	require.NoError(t, err)
	assert.Equal(t, StatusKeptExisting, out.Status)
	assert.Empty(t, src.calls, "nothing to delete and the candidate is dropped")
	assert.Nil(t, out.Event)
	assert.Equal(t, at(9, 0), src.events["A"].Start)
}

func TestWorkflow_PartialFailureReportsSteps(t *testing.T) {
	boom := errors.New("backend unavailable")
	src := newFakeSource(
		ev("A", rng(9, 0, 10, 0)),
		ev("B", rng(9, 30, 10, 30)),
		ev("C", rng(10, 0, 10, 45)),
	)
	src.failOn["delete C"] = boom
	w := newWorkflow(src, KeepCandidate)

	out, err := w.Resolve(context.Background(), Proposal{EventID: "A", Patch: models.PatchFromRange(rng(9, 15, 10, 15))})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, out.Status)

	require.Len(t, out.Steps, 3)
	assert.Equal(t, batch.StatusSuccess, out.Steps[0].Status)
	assert.Equal(t, batch.StatusError, out.Steps[1].Status)
	assert.Equal(t, batch.StatusSkipped, out.Steps[2].Status)
	assert.Equal(t, []string{"B"}, out.Discarded())
	assert.Equal(t, at(9, 0), src.events["A"].Start, "update never ran")
}

func TestWorkflow_DeciderErrors(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)), ev("B", rng(9, 30, 10, 30)))
	p := Proposal{EventID: "A", Patch: models.PatchFromRange(rng(9, 15, 10, 15))}

	_, err := newWorkflow(src, nil).Resolve(context.Background(), p)
	assert.ErrorIs(t, err, ErrNoDecider)

	_, err = newWorkflow(src, Reject).Resolve(context.Background(), p)
	assert.ErrorIs(t, err, ErrResolutionRejected)

	cause := errors.New("user closed the dialog")
	_, err = newWorkflow(src, DeciderFunc(func(context.Context, Set) (Resolution, error) {
		return Resolution{}, cause
	})).Resolve(context.Background(), p)
	assert.ErrorIs(t, err, ErrResolutionRejected)
	assert.ErrorIs(t, err, cause)

	out, err := newWorkflow(src, DeciderFunc(func(context.Context, Set) (Resolution, error) {
		return Resolution{KeepID: "nope"}, nil
	})).Resolve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidResolution)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, src.calls, "no step runs before the resolution validates")
}

func TestWorkflow_Create(t *testing.T) {
	src := newFakeSource(ev("B", rng(9, 30, 10, 30)))
	w := newWorkflow(src, KeepCandidate)

	out, err := w.Resolve(context.Background(), Proposal{Draft: &models.Draft{Title: "New", Start: at(9, 0), End: at(10, 0)}})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, out.Status)
	assert.Equal(t, []string{"delete B", "create"}, src.calls)
	require.NotNil(t, out.Event)
	assert.Equal(t, "new-1", out.Event.ID)
	assert.Nil(t, out.Previous)
}

func TestWorkflow_InvalidProposals(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)))
	w := newWorkflow(src, KeepCandidate)
	ctx := context.Background()

	_, err := w.Resolve(ctx, Proposal{EventID: "missing", Patch: models.PatchFromRange(rng(9, 0, 10, 0))})
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = w.Resolve(ctx, Proposal{EventID: "A"})
	assert.ErrorIs(t, err, ErrInvalidProposal)

	end := at(8, 0)
	_, err = w.Resolve(ctx, Proposal{EventID: "A", Patch: models.Patch{End: &end}})
	assert.ErrorIs(t, err, ErrInvalidProposal)

	_, err = w.Resolve(ctx, Proposal{Draft: &models.Draft{Start: at(10, 0), End: at(10, 0)}})
	assert.ErrorIs(t, err, ErrInvalidProposal)

	src.failOn["list"] = errors.New("offline")
	_, err = w.Resolve(ctx, Proposal{EventID: "A", Patch: models.PatchFromRange(rng(9, 0, 10, 0))})
	assert.Error(t, err)
}

func TestWorkflow_UsesProvidedEvents(t *testing.T) {
	src := newFakeSource(ev("A", rng(9, 0, 10, 0)))
	src.failOn["list"] = errors.New("must not list")
	w := newWorkflow(src, Reject)

	view := []models.Event{ev("A", rng(9, 0, 10, 0)), ev("B", rng(12, 0, 13, 0))}
	out, err := w.Resolve(context.Background(), Proposal{
		EventID: "A",
		Patch:   models.PatchFromRange(rng(11, 0, 12, 0)),
		Events:  view,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
}
