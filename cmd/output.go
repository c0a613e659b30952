package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/teemow/slotwise/internal/batch"
	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/models"
)

const timeLayout = "Mon Jan 2 15:04"

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed, color.Bold)
	pending = color.New(color.FgHiYellow, color.Italic)
)

func formatRange(r models.Range, loc *time.Location) string {
	start, end := r.Start.In(loc), r.End.In(loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return start.Format(timeLayout) + "-" + end.Format("15:04")
	}
	return start.Format(timeLayout) + " - " + end.Format(timeLayout)
}

// printEvents renders events as a table. Ids in changed are marked pending.
func printEvents(w io.Writer, events []models.Event, loc *time.Location, changed map[string]bool) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("When"), bold.Sprint("Title"), bold.Sprint("Type"), bold.Sprint("Status"))

	for _, ev := range events {
		when := formatRange(ev.Range(), loc)
		status := ev.Status
		switch {
		case changed[ev.ID]:
			when = pending.Sprint(when)
			status = pending.Sprint("pending")
		case ev.Cancelled():
			when = faint.Sprint(when)
			status = faint.Sprint(status)
		}
		tbl.AddRow(ev.ID, when, ev.Title, ev.EventType, status)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// printConflicts renders a conflict set.
func printConflicts(w io.Writer, set conflict.Set, loc *time.Location) {
	if set.Empty() {
		_, _ = fmt.Fprintln(w, success.Sprint("No conflicts"), "for", formatRange(set.Candidate, loc))
		return
	}
	_, _ = fmt.Fprintf(w, "%s %s overlaps %d event(s):\n",
		failure.Sprint("Conflict:"), formatRange(set.Candidate, loc), len(set.Conflicts))
	printEvents(w, set.Conflicts, loc, nil)
}

// printResult renders one commit result with its conflict resolution steps.
func printResult(w io.Writer, res engine.Result, loc *time.Location) {
	switch {
	case !res.OK():
		_, _ = fmt.Fprintf(w, "%s %s: %v\n", failure.Sprint("Commit failed"), res.EventID, res.Err)
	case res.Outcome.Status == conflict.StatusKeptExisting && res.Outcome.Resolution != nil:
		_, _ = fmt.Fprintf(w, "%s %s (%s)\n", faint.Sprint("Kept"), res.Outcome.Resolution.KeepID, res.Outcome.Status)
	default:
		line := fmt.Sprintf("%s %s (%s)", success.Sprint("Committed"), res.EventID, res.Outcome.Status)
		if res.Event != nil {
			line += " " + formatRange(res.Event.Range(), loc)
		}
		_, _ = fmt.Fprintln(w, line)
	}

	if len(res.Outcome.Steps) == 0 {
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Step"), bold.Sprint("Event"), bold.Sprint("Status"), bold.Sprint("Detail"))
	for _, step := range res.Outcome.Steps {
		status := step.Status
		detail := step.Result
		switch step.Status {
		case batch.StatusSuccess:
			status = success.Sprint(status)
		case batch.StatusError:
			status = failure.Sprint(status)
			detail = step.Error
		default:
			status = faint.Sprint(status)
		}
		tbl.AddRow(step.Step, step.ID, status, detail)
	}
	_, _ = fmt.Fprintln(w, tbl)
}
