package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/models"
)

func newConflictsCmd(opts *rootOptions) *cobra.Command {
	var start, end, exclude string

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Show events overlapping a proposed range",
		Long: `Check a proposed range against the events of the configured source.
Ranges are half-open, so an event ending exactly at --start does not conflict.
Cancelled events never conflict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := opts.cfg.Grid().Location
			s, err := parseTime(start, loc)
			if err != nil {
				return err
			}
			e, err := parseTime(end, loc)
			if err != nil {
				return err
			}
			candidate := models.Range{Start: s, End: e}
			if !candidate.Valid() {
				return fmt.Errorf("%w: end must be after start", conflict.ErrInvalidProposal)
			}

			ctx := cmd.Context()
			src, err := opts.openSource(ctx, nil)
			if err != nil {
				return err
			}
			events, err := src.Events(ctx)
			if err != nil {
				return err
			}

			printConflicts(cmd.OutOrStdout(), conflict.Detect(candidate, events, exclude), loc)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Proposed start")
	cmd.Flags().StringVar(&end, "end", "", "Proposed end")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Event id to ignore, usually the event being moved")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
