package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/timegrid"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		title, start, end, eventType string
		email, phone, name           string
		tentative                    bool
		resolve                      resolveFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event, resolving conflicts like a moved event",
		Long: `Create a new event in the configured source. The range is snapped to the
grid and extended to the minimum duration before conflicts are checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grid := opts.cfg.Grid()
			s, err := parseTime(start, grid.Location)
			if err != nil {
				return err
			}
			e, err := parseTime(end, grid.Location)
			if err != nil {
				return err
			}
			s = grid.Snap(s.In(grid.Location), timegrid.SnapNearest)
			e = grid.Snap(e.In(grid.Location), timegrid.SnapNearest)
			s, e = timegrid.EnforceMinimumDuration(s, e, grid.MinimumDuration, timegrid.EdgeEnd)

			draft := models.Draft{Title: title, Start: s, End: e, EventType: eventType, Status: models.StatusConfirmed}
			if tentative {
				draft.Status = models.StatusTentative
			}
			if c := (models.Contact{Name: name, Email: email, Phone: phone}); !c.IsZero() {
				draft.Contact = &c
			}

			decider, err := resolve.decider(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, nil)
			if err != nil {
				return err
			}
			eng, err := opts.newEngine(src, engineDeps{decider: decider})
			if err != nil {
				return err
			}
			defer eng.Close()

			res := eng.Create(ctx, draft)
			printResult(cmd.OutOrStdout(), res, grid.Location)
			if res.Err != nil {
				return fmt.Errorf("failed to create event: %w", res.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Event title")
	cmd.Flags().StringVar(&start, "start", "", "Start time")
	cmd.Flags().StringVar(&end, "end", "", "End time")
	cmd.Flags().StringVar(&eventType, "type", "", "Event type")
	cmd.Flags().StringVar(&name, "contact-name", "", "Booking contact name")
	cmd.Flags().StringVar(&email, "contact-email", "", "Booking contact email")
	cmd.Flags().StringVar(&phone, "contact-phone", "", "Booking contact phone")
	cmd.Flags().BoolVar(&tentative, "tentative", false, "Create the event as tentative")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	resolve.register(cmd)
	return cmd
}
