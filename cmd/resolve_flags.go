package cmd

import (
	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/conflict"
)

// resolveFlags are the conflict resolution flags shared by simulate and create.
type resolveFlags struct {
	keep        string
	discard     []string
	interactive bool
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keep, "keep", "", "On conflict keep this event: 'candidate' or a conflicting event id")
	cmd.Flags().StringSliceVar(&f.discard, "discard", nil, "On conflict delete these events (comma-separated)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Ask on stdin how to resolve conflicts")
}

func (f *resolveFlags) decider(cmd *cobra.Command, opts *rootOptions) (conflict.Decider, error) {
	if f.interactive {
		return promptDecider(cmd.InOrStdin(), cmd.OutOrStdout(), opts.cfg.Grid().Location), nil
	}
	return flagDecider(f.keep, f.discard)
}
