package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/frame"
	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pointer"
)

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var (
		op      string
		dx, dy  float64
		commit  bool
		resolve resolveFlags
	)

	cmd := &cobra.Command{
		Use:   "simulate <event-id>",
		Short: "Run one drag or resize gesture through the engine",
		Long: `Simulate a pointer gesture on an event. The pointer goes down at (0,0),
moves by --dx/--dy pixels and is released. The snapped result is shown and
kept as a pending change.

With --commit (or commit.mode=immediate) the change is written to the event
source. Conflicts are resolved with --keep/--discard or interactively with -i;
without either the commit is rejected when anything overlaps.`,
		Example: `  slotwise simulate 4f2c... --dy 73
  slotwise simulate 4f2c... --op resize-end --dy 3 --commit --keep candidate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operation, err := models.ParseOperation(op)
			if err != nil {
				return err
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

			sched := frame.NewManual()
			eng, err := opts.newEngine(src, engineDeps{decider: decider, scheduler: sched})
			if err != nil {
				return err
			}
			defer eng.Close()

			id := args[0]
			now := time.Now()
			if err := eng.Begin(ctx, id, operation, pointer.Sample{At: now}); err != nil {
				return err
			}
			session, _ := eng.Controller().Session()
			eng.Feed().Push(pointer.Sample{X: dx, Y: dy, At: now.Add(frame.DefaultInterval)})
			sched.Flush()

			out := cmd.OutOrStdout()
			grid := opts.cfg.Grid()
			loc := grid.Location
			_, _ = fmt.Fprintf(out, "%s %s\n", bold.Sprint(operation.String()), id)
			_, _ = fmt.Fprintf(out, "  from %s\n", formatRange(session.Original, loc))
			_, _ = fmt.Fprintf(out, "  pointer %+d min\n", grid.PixelsToMinutes(dy))

			res, changed := eng.Release(ctx)
			if !changed {
				_, _ = fmt.Fprintln(out, faint.Sprint("  unchanged"))
				return nil
			}
			if patch, ok := eng.Store().Get(id); ok {
				_, _ = fmt.Fprintf(out, "  to   %s\n", pending.Sprint(formatRange(patch.ApplyRange(session.Original), loc)))
			}

			if eng.Mode() == engine.ModeBuffered {
				if !commit {
					return res.Err
				}
				res = eng.CommitOne(ctx, id)
			}
			printResult(out, res, loc)
			return res.Err
		},
	}

	cmd.Flags().StringVar(&op, "op", "drag", "Gesture: drag, resize-start or resize-end")
	cmd.Flags().Float64Var(&dx, "dx", 0, "Horizontal pointer movement in pixels")
	cmd.Flags().Float64Var(&dy, "dy", 0, "Vertical pointer movement in pixels")
	cmd.Flags().BoolVar(&commit, "commit", false, "Commit the change to the event source")
	resolve.register(cmd)
	return cmd
}
