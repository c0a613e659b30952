package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotwise/internal/batch"
	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pointer"
	"github.com/teemow/slotwise/internal/timegrid"
)

// Tool names.
const (
	ToolListEvents     = "slotwise_list_events"
	ToolCheckConflicts = "slotwise_check_conflicts"
	ToolListPending    = "slotwise_list_pending"
	ToolMoveEvent      = "slotwise_move_event"
	ToolDiscard        = "slotwise_discard"
	ToolUndo           = "slotwise_undo"
	ToolRedo           = "slotwise_redo"
	ToolCommit         = "slotwise_commit"
	ToolCreateEvent    = "slotwise_create_event"
)

const dayLayout = "2006-01-02"

// ErrImmediateReadOnly is returned by New for a read-only server whose engine
// commits on release.
var ErrImmediateReadOnly = errors.New("a read-only server needs the buffered commit mode")

type handlerFunc = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Config holds the collaborators of the tool handlers.
type Config struct {
	// NewEngine builds the engine the tools drive. The decider it receives
	// answers conflicts from the keep and discard arguments of the call in
	// progress and rejects them otherwise.
	NewEngine func(decider conflict.Decider) (*engine.Engine, error)

	// Source is read by slotwise_check_conflicts.
	Source conflict.EventSource

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// ReadOnly leaves out the tools that write to the event source.
	ReadOnly bool
}

// Server owns the engine behind the tools.
type Server struct {
	mu       sync.Mutex
	engine   *engine.Engine
	source   conflict.EventSource
	grid     timegrid.Grid
	decider  *callDecider
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	readOnly bool
}

// callDecider delegates to the decider of the current call. Guarded by
// Server.mu.
type callDecider struct {
	current conflict.Decider
}

func (d *callDecider) Decide(ctx context.Context, set conflict.Set) (conflict.Resolution, error) {
	return d.current.Decide(ctx, set)
}

// New builds the engine and the server around it.
func New(cfg Config) (*Server, error) {
	if cfg.NewEngine == nil || cfg.Source == nil {
		return nil, errors.New("tools: NewEngine and Source are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	decider := &callDecider{current: conflict.Reject}
	eng, err := cfg.NewEngine(decider)
	if err != nil {
		return nil, err
	}
	if eng.Feed() == nil {
		eng.Close()
		return nil, errors.New("tools: the engine must own its pointer feed")
	}
	if cfg.ReadOnly && eng.Mode() == engine.ModeImmediate {
		eng.Close()
		return nil, ErrImmediateReadOnly
	}

	return &Server{
		engine:   eng,
		source:   cfg.Source,
		grid:     eng.Controller().Grid().Normalize(),
		decider:  decider,
		logger:   logging.WithComponent(cfg.Logger, "tools"),
		metrics:  cfg.Metrics,
		readOnly: cfg.ReadOnly,
	}, nil
}

// Engine returns the engine the tools drive.
func (s *Server) Engine() *engine.Engine { return s.engine }

// Close stops the engine. Uncommitted changes are lost.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.engine.Store().Len(); n > 0 {
		s.logger.Warn("closing with uncommitted changes", slog.Int("pending", n))
	}
	s.engine.Close()
}

// Register adds the tools to srv.
func (s *Server) Register(srv *mcpserver.MCPServer) {
	resolution := []mcp.ToolOption{
		mcp.WithString("keep",
			mcp.Description(`On conflict: "candidate" keeps this change, an event id keeps that event instead`),
		),
		mcp.WithString("discard",
			mcp.Description("On conflict: comma-separated conflicting event ids to delete (default with keep=candidate: all of them)"),
		),
	}

	srv.AddTool(mcp.NewTool(ToolListEvents,
		mcp.WithDescription("List calendar events as currently displayed, pending changes applied"),
		mcp.WithString("day",
			mcp.Description("Only events overlapping this day (YYYY-MM-DD, grid timezone)"),
		),
	), s.instrumented(ToolListEvents, s.handleListEvents))

	srv.AddTool(mcp.NewTool(ToolCheckConflicts,
		mcp.WithDescription("List the stored events that overlap a proposed time range"),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Range start (RFC3339, e.g. '2026-03-02T10:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Range end (RFC3339), exclusive"),
		),
		mcp.WithString("excludeId",
			mcp.Description("Event id to ignore, usually the event being moved"),
		),
	), s.instrumented(ToolCheckConflicts, s.handleCheckConflicts))

	srv.AddTool(mcp.NewTool(ToolListPending,
		mcp.WithDescription("List uncommitted changes and whether undo or redo is possible"),
	), s.instrumented(ToolListPending, s.handleListPending))

	moveOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Drag or resize an event by a number of minutes. The result snaps to the grid and is kept as a pending change until committed"),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The event to move"),
		),
		mcp.WithString("operation",
			mcp.Description("drag (default), resize-start or resize-end"),
		),
		mcp.WithNumber("minutes",
			mcp.Required(),
			mcp.Description("Pointer movement in minutes, negative moves earlier. Bounded by the visible day"),
		),
	}, resolution...)
	srv.AddTool(mcp.NewTool(ToolMoveEvent, moveOpts...), s.instrumented(ToolMoveEvent, s.handleMoveEvent))

	srv.AddTool(mcp.NewTool(ToolDiscard,
		mcp.WithDescription("Drop the pending change of one event"),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The event whose pending change is dropped"),
		),
	), s.instrumented(ToolDiscard, s.handleDiscard))

	srv.AddTool(mcp.NewTool(ToolUndo,
		mcp.WithDescription("Undo the last pending change"),
	), s.instrumented(ToolUndo, s.handleUndo))

	srv.AddTool(mcp.NewTool(ToolRedo,
		mcp.WithDescription("Redo the last undone pending change"),
	), s.instrumented(ToolRedo, s.handleRedo))

	if s.readOnly {
		return
	}

	commitOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Commit pending changes to the calendar. Overlapping events are only replaced when keep says so"),
		mcp.WithString("eventId",
			mcp.Description("Commit only this event (default: every pending change)"),
		),
	}, resolution...)
	srv.AddTool(mcp.NewTool(ToolCommit, commitOpts...), s.instrumented(ToolCommit, s.handleCommit))

	createOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Create a calendar event. Overlapping events are only replaced when keep says so"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339)"),
		),
		mcp.WithString("eventType",
			mcp.Description("Free-form event type, e.g. 'consultation'"),
		),
		mcp.WithString("contactName", mcp.Description("Contact name")),
		mcp.WithString("contactEmail", mcp.Description("Contact email")),
		mcp.WithString("contactPhone", mcp.Description("Contact phone")),
	}, resolution...)
	srv.AddTool(mcp.NewTool(ToolCreateEvent, createOpts...), s.instrumented(ToolCreateEvent, s.handleCreateEvent))
}

// instrumented serializes the call and records its duration and status. A
// result flagged IsError counts as an error.
func (s *Server) instrumented(name string, handler handlerFunc) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		s.mu.Lock()
		result, err := handler(ctx, request)
		s.mu.Unlock()

		duration := time.Since(start)
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		s.metrics.RecordToolCall(ctx, name, status, duration)
		s.logger.Debug("tool call",
			slog.String("tool", name),
			slog.String("status", status),
			slog.Duration("duration", duration))
		return result, err
	}
}

func (s *Server) handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	events, err := s.engine.View(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if dayStr := stringArg(args, "day"); dayStr != "" {
		day, err := time.ParseInLocation(dayLayout, dayStr, s.grid.Location)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid day format: %v", err)), nil
		}
		window := models.Range{Start: day, End: day.AddDate(0, 0, 1)}
		filtered := events[:0]
		for _, ev := range events {
			if timegrid.RangesOverlap(window, ev.Range()) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d events:\n\n", len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ev.Title)
		fmt.Fprintf(&b, "   ID: %s\n", ev.ID)
		fmt.Fprintf(&b, "   When: %s\n", s.formatRange(ev.Range()))
		if ev.EventType != "" {
			fmt.Fprintf(&b, "   Type: %s\n", ev.EventType)
		}
		if ev.Status != "" {
			fmt.Fprintf(&b, "   Status: %s\n", ev.Status)
		}
		if _, ok := s.engine.Store().Get(ev.ID); ok {
			b.WriteString("   Pending: uncommitted change\n")
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleCheckConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, err := timeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := timeArg(args, "end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidate := models.Range{Start: start, End: end}
	if !candidate.Valid() {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	events, err := s.source.Events(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}
	set := conflict.Detect(candidate, events, stringArg(args, "excludeId"))
	if set.Empty() {
		return mcp.NewToolResultText(fmt.Sprintf("No conflicts for %s\n", s.formatRange(candidate))), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d conflicting events for %s:\n", len(set.Conflicts), s.formatRange(candidate))
	s.writeConflicts(&b, set)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleListPending(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.engine.Store()

	var b strings.Builder
	ids := st.IDs()
	fmt.Fprintf(&b, "%d pending changes\n", len(ids))
	for _, id := range ids {
		patch, _ := st.Get(id)
		line := "  - " + id
		if patch.Start != nil && patch.End != nil {
			line += ": " + s.formatRange(models.Range{Start: *patch.Start, End: *patch.End})
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "Undo: %s\nRedo: %s\n", availability(st.CanUndo()), availability(st.CanRedo()))
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleMoveEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	id := stringArg(args, "eventId")
	if id == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}
	op := models.OperationDrag
	if opStr := stringArg(args, "operation"); opStr != "" {
		parsed, err := models.ParseOperation(opStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		op = parsed
	}
	minutes, ok := numberArg(args, "minutes")
	if !ok {
		return mcp.NewToolResultError("minutes is required"), nil
	}
	if err := s.useResolution(args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer s.resetResolution()

	view, err := s.engine.View(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var current *models.Event
	for i := range view {
		if view[i].ID == id {
			current = &view[i]
			break
		}
	}
	if current == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Event %s not found", id)), nil
	}

	// Grab the gripped edge and move the pointer by the requested minutes.
	edge := current.Start
	if op == models.OperationResizeEnd {
		edge = current.End
	}
	originY := s.pointerY(edge)
	now := time.Now()
	if err := s.engine.Begin(ctx, id, op, pointer.Sample{Y: originY, At: now}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.engine.Feed().Push(pointer.Sample{Y: originY + minutes*s.grid.PixelsPerMinute, At: now})

	res, changed := s.engine.Release(ctx)
	if !changed {
		return mcp.NewToolResultText(fmt.Sprintf("Event %s unchanged: %s snaps back to %s\n",
			id, op, s.formatRange(current.Range()))), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", op, id)
	fmt.Fprintf(&b, "  from %s\n", s.formatRange(current.Range()))
	if patch, ok := s.engine.Store().Get(id); ok {
		fmt.Fprintf(&b, "  to   %s (pending)\n", s.formatRange(patch.ApplyRange(current.Range())))
	}
	if s.engine.Mode() == engine.ModeImmediate {
		s.writeResult(&b, res)
	} else if !res.OK() {
		fmt.Fprintf(&b, "Failed to keep the change: %v\n", res.Err)
	}
	fmt.Fprintf(&b, "Pending changes: %d\n", s.engine.Store().Len())
	if !res.OK() {
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleDiscard(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(request.GetArguments(), "eventId")
	if id == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}
	if !s.engine.Discard(id) {
		return mcp.NewToolResultError(fmt.Sprintf("No pending change for %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Discarded the pending change of %s. Pending changes: %d\n",
		id, s.engine.Store().Len())), nil
}

func (s *Server) handleUndo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.engine.Undo() {
		return mcp.NewToolResultError("Nothing to undo"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Undone. Pending changes: %d\n", s.engine.Store().Len())), nil
}

func (s *Server) handleRedo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.engine.Redo() {
		return mcp.NewToolResultError("Nothing to redo"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Redone. Pending changes: %d\n", s.engine.Store().Len())), nil
}

func (s *Server) handleCommit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if err := s.useResolution(args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer s.resetResolution()

	var results []engine.Result
	if id := stringArg(args, "eventId"); id != "" {
		results = []engine.Result{s.engine.CommitOne(ctx, id)}
	} else {
		results = s.engine.CommitAll(ctx)
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No pending changes to commit\n"), nil
	}

	var b strings.Builder
	failed := false
	for _, res := range results {
		s.writeResult(&b, res)
		failed = failed || !res.OK()
	}
	fmt.Fprintf(&b, "Pending changes: %d\n", s.engine.Store().Len())
	if failed {
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleCreateEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	title := stringArg(args, "title")
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	start, err := timeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := timeArg(args, "end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft := models.Draft{
		Title:     title,
		Start:     start,
		End:       end,
		EventType: stringArg(args, "eventType"),
		Status:    models.StatusConfirmed,
	}
	contact := models.Contact{
		Name:  stringArg(args, "contactName"),
		Email: stringArg(args, "contactEmail"),
		Phone: stringArg(args, "contactPhone"),
	}
	if !contact.IsZero() {
		draft.Contact = &contact
	}

	if err := s.useResolution(args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer s.resetResolution()

	res := s.engine.Create(ctx, draft)
	var b strings.Builder
	s.writeResult(&b, res)
	if !res.OK() {
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// useResolution answers conflicts of the current call from its keep and
// discard arguments.
func (s *Server) useResolution(args map[string]any) error {
	var discard []string
	if raw := stringArg(args, "discard"); raw != "" {
		ids, err := batch.ParseIDList([]string{raw}, "discard")
		if err != nil {
			return err
		}
		discard = ids
	}
	s.decider.current = conflict.Static(stringArg(args, "keep"), discard)
	return nil
}

func (s *Server) resetResolution() {
	s.decider.current = conflict.Reject
}

func (s *Server) writeResult(b *strings.Builder, res engine.Result) {
	name := res.EventID
	if name == "" {
		name = "new event"
	}

	switch {
	case errors.Is(res.Err, conflict.ErrResolutionRejected) && !res.Outcome.Conflicts.Empty():
		fmt.Fprintf(b, "Commit of %s rejected, %s overlaps %d events:\n",
			name, s.formatRange(res.Outcome.Conflicts.Candidate), len(res.Outcome.Conflicts.Conflicts))
		s.writeConflicts(b, res.Outcome.Conflicts)
		fmt.Fprintf(b, "Call again with keep=%q to replace them, or keep=<event id> to keep that event and drop this change. "+
			"discard=<ids> limits which conflicting events are deleted.\n", conflict.CandidateID)
	case !res.OK():
		fmt.Fprintf(b, "Commit of %s failed: %v\n", name, res.Err)
	case res.Outcome.Status == conflict.StatusKeptExisting && res.Outcome.Resolution != nil:
		fmt.Fprintf(b, "Kept %s, the change to %s was dropped\n", res.Outcome.Resolution.KeepID, name)
	default:
		line := fmt.Sprintf("Committed %s (%s)", name, res.Outcome.Status)
		if res.Event != nil {
			line += " " + s.formatRange(res.Event.Range())
		}
		b.WriteString(line + "\n")
	}
	if deleted := res.Outcome.Discarded(); len(deleted) > 0 {
		fmt.Fprintf(b, "  deleted %s\n", strings.Join(deleted, ", "))
	}
}

func (s *Server) writeConflicts(b *strings.Builder, set conflict.Set) {
	for _, ev := range set.Conflicts {
		fmt.Fprintf(b, "  - %s %q %s\n", ev.ID, ev.Title, s.formatRange(ev.Range()))
	}
}

// pointerY places the pointer in the middle of the minute at t so that
// truncation in the grid cannot lose a minute.
func (s *Server) pointerY(t time.Time) float64 {
	t = t.In(s.grid.Location)
	minutes := t.Hour()*60 + t.Minute() - s.grid.ViewStartHour*60
	return (float64(minutes) + 0.5) * s.grid.PixelsPerMinute
}

func (s *Server) formatRange(r models.Range) string {
	return r.Start.In(s.grid.Location).Format(time.RFC3339) + " to " + r.End.In(s.grid.Location).Format(time.RFC3339)
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "none"
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func timeArg(args map[string]any, key string) (time.Time, error) {
	raw := stringArg(args, key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return t, nil
}
