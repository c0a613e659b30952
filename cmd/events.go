package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/store"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		day       string
		ics       bool
		cancelled bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events from the configured source",
		Long: `List the events of the configured event source in start order.

Use --day to restrict the list to one day in the configured timezone and
--ics to print the events as an iCalendar document instead of a table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, nil)
			if err != nil {
				return err
			}
			events, err := src.Events(ctx)
			if err != nil {
				return err
			}

			loc := opts.cfg.Grid().Location
			if day != "" {
				d, err := time.ParseInLocation("2006-01-02", day, loc)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				events = onDay(events, d)
			}
			if !cancelled {
				events = withoutCancelled(events)
			}

			if ics {
				_, err := fmt.Fprint(cmd.OutOrStdout(), store.ExportICS(events, time.Now()))
				return err
			}
			if len(events) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No events")
				return nil
			}
			printEvents(cmd.OutOrStdout(), events, loc, nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "Only list events overlapping this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&ics, "ics", false, "Print events as iCalendar")
	cmd.Flags().BoolVar(&cancelled, "cancelled", false, "Include cancelled events")
	return cmd
}

func onDay(events []models.Event, day time.Time) []models.Event {
	r := models.Range{Start: day, End: day.AddDate(0, 0, 1)}
	var out []models.Event
	for _, ev := range events {
		if ev.Start.Before(r.End) && r.Start.Before(ev.End) {
			out = append(out, ev)
		}
	}
	return out
}

func withoutCancelled(events []models.Event) []models.Event {
	out := events[:0:0]
	for _, ev := range events {
		if !ev.Cancelled() {
			out = append(out, ev)
		}
	}
	return out
}

// parseTime accepts RFC 3339 or a local "2006-01-02T15:04" form.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339 or 2006-01-02T15:04)", s)
}
