package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/config"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ics|->",
		Short: "Import an iCalendar file into the local event store",
		Long: `Import timed events from an iCalendar file into the local event store.
All-day events are skipped. Event ids are derived from the ICS UID, so
importing the same file again updates the events instead of duplicating them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Source != config.SourceLocal {
				return fmt.Errorf("import requires the %s source, got %s", config.SourceLocal, opts.cfg.Source)
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			s, err := opts.openStore(nil)
			if err != nil {
				return err
			}
			stats, err := s.ImportICS(cmd.Context(), r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %d event(s) into %s\n", success.Sprint("Imported"), stats.Imported, s.Path())
			if stats.Skipped > 0 {
				_, _ = fmt.Fprintf(out, "%s %d event(s)\n", faint.Sprint("Skipped"), stats.Skipped)
				for _, reason := range stats.Reasons {
					_, _ = fmt.Fprintln(out, faint.Sprint("  "+reason))
				}
			}
			return nil
		},
	}
	return cmd
}
