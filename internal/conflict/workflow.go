package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/slotwise/internal/batch"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
)

// Step names reported in Outcome.Steps.
const (
	StepDelete = "delete"
	StepUpdate = "update"
	StepCreate = "create"
)

// Proposal is a change to commit: an update of EventID by Patch, or the
// creation of Draft when Draft is set.
type Proposal struct {
	EventID string
	Patch   models.Patch
	Draft   *models.Draft

	// Events is checked for conflicts instead of the source's event list
	// when non-nil.
	Events []models.Event
}

// IsCreate reports whether the proposal creates a new event.
func (p Proposal) IsCreate() bool {
	return p.Draft != nil
}

// Operation returns "create" or "update".
func (p Proposal) Operation() string {
	if p.IsCreate() {
		return StepCreate
	}
	return StepUpdate
}

// Status summarises how a proposal ended.
type Status string

const (
	// StatusCommitted means there were no conflicts and the change was stored.
	StatusCommitted Status = "committed"

	// StatusResolved means conflicts were resolved in favour of the change.
	StatusResolved Status = "resolved"

	// StatusKeptExisting means an existing event was kept and the change dropped.
	StatusKeptExisting Status = "kept-existing"

	// StatusFailed means the decider refused or a step failed.
	StatusFailed Status = "failed"
)

// Outcome reports what a Resolve call did.
type Outcome struct {
	Status     Status
	Previous   *models.Event
	Event      *models.Event
	Conflicts  Set
	Resolution *Resolution
	Steps      []batch.Result
}

// Discarded returns the ids whose delete step succeeded.
func (o Outcome) Discarded() []string {
	var ids []string
	for _, r := range o.Steps {
		if r.Step == StepDelete && r.OK() {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Workflow commits proposals through Source, consulting Decider on conflicts.
type Workflow struct {
	Source  EventSource
	Decider Decider
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Resolve commits p. On error the Outcome still carries the conflict set and
// any steps that ran.
func (w *Workflow) Resolve(ctx context.Context, p Proposal) (out Outcome, err error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithOperation(logger, p.Operation())

	ctx, span := instrumentation.StartSpan(ctx, instrumentation.SpanResolve,
		instrumentation.NewSpanAttributeBuilder().
			WithEventID(p.EventID).
			WithOperation(p.Operation()).
			Build()...)
	defer func() {
		if err != nil {
			out.Status = StatusFailed
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
	}()

	events := p.Events
	if events == nil {
		events, err = w.Source.Events(ctx)
		if err != nil {
			return out, fmt.Errorf("failed to list events: %w", err)
		}
	}

	candidate, previous, err := candidateRange(p, events)
	if err != nil {
		return out, err
	}
	out.Previous = previous

	out.Conflicts = Detect(candidate, events, p.EventID)
	w.Metrics.RecordConflicts(ctx, len(out.Conflicts.Conflicts))
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrConflicts, len(out.Conflicts.Conflicts)))

	if out.Conflicts.Empty() {
		out.Steps, err = batch.Run(ctx, []batch.Step{w.commitStep(p, &out)})
		if err != nil {
			return out, err
		}
		out.Status = StatusCommitted
		return out, nil
	}

	logger.Info("conflicts detected",
		logging.EventID(p.EventID),
		slog.Any("conflicts", out.Conflicts.IDs()))

	if w.Decider == nil {
		return out, ErrNoDecider
	}
	res, err := w.Decider.Decide(ctx, out.Conflicts)
	if err != nil {
		if errors.Is(err, ErrResolutionRejected) {
			return out, err
		}
		return out, fmt.Errorf("%w: %w", ErrResolutionRejected, err)
	}
	if err := res.Validate(out.Conflicts); err != nil {
		return out, err
	}
	out.Resolution = &res

	steps := make([]batch.Step, 0, len(res.DiscardIDs)+1)
	for _, id := range res.DiscardIDs {
		steps = append(steps, w.deleteStep(id))
	}
	if res.KeepsCandidate() {
		steps = append(steps, w.commitStep(p, &out))
	}

	out.Steps, err = batch.Run(ctx, steps)
	if err != nil {
		logger.Warn("conflict resolution stopped",
			logging.EventID(p.EventID),
			slog.Any("discarded", out.Discarded()),
			logging.Err(err))
		return out, err
	}

	if res.KeepsCandidate() {
		out.Status = StatusResolved
	} else {
		out.Status = StatusKeptExisting
	}
	logger.Info("conflicts resolved",
		logging.EventID(p.EventID),
		slog.String("keep", res.KeepID),
		slog.Any("discarded", res.DiscardIDs))
	return out, nil
}

func candidateRange(p Proposal, events []models.Event) (models.Range, *models.Event, error) {
	if p.IsCreate() {
		r := p.Draft.Range()
		if !r.Valid() {
			return r, nil, fmt.Errorf("%w: draft range %s", ErrInvalidProposal, r)
		}
		return r, nil, nil
	}

	if p.EventID == "" || p.Patch.IsEmpty() {
		return models.Range{}, nil, fmt.Errorf("%w: update needs an event id and a patch", ErrInvalidProposal)
	}
	for _, ev := range events {
		if ev.ID != p.EventID {
			continue
		}
		prev := ev.Clone()
		r := p.Patch.Apply(ev).Range()
		if !r.Valid() {
			return r, &prev, fmt.Errorf("%w: %s would become %s", ErrInvalidProposal, p.EventID, r)
		}
		return r, &prev, nil
	}
	return models.Range{}, nil, fmt.Errorf("%w: %s", ErrEventNotFound, p.EventID)
}

func (w *Workflow) commitStep(p Proposal, out *Outcome) batch.Step {
	if p.IsCreate() {
		draft := *p.Draft
		return batch.Step{ID: CandidateID, Name: StepCreate, Fn: func(ctx context.Context) (string, error) {
			ev, err := w.Source.CreateEvent(ctx, draft)
			if err != nil {
				return "", err
			}
			out.Event = &ev
			return "created " + ev.ID, nil
		}}
	}

	id, patch := p.EventID, p.Patch.Clone()
	return batch.Step{ID: id, Name: StepUpdate, Fn: func(ctx context.Context) (string, error) {
		ev, err := w.Source.UpdateEvent(ctx, id, patch)
		if err != nil {
			return "", err
		}
		out.Event = &ev
		return "moved to " + ev.Range().String(), nil
	}}
}

func (w *Workflow) deleteStep(id string) batch.Step {
	return batch.Step{ID: id, Name: StepDelete, Fn: func(ctx context.Context) (string, error) {
		if err := w.Source.DeleteEvent(ctx, id); err != nil {
			return "", err
		}
		return "deleted", nil
	}}
}
