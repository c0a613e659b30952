package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/teemow/slotwise/internal/batch"
	"github.com/teemow/slotwise/internal/conflict"
)

// flagDecider resolves conflicts from --keep and --discard. Without either
// flag every conflict is rejected.
func flagDecider(keep string, discard []string) (conflict.Decider, error) {
	ids, err := batch.ParseIDList(discard, "discard")
	if err != nil {
		return nil, err
	}
	return conflict.Static(strings.TrimSpace(keep), ids), nil
}

// promptDecider asks on in which event to keep. Keeping the proposed change
// discards every conflicting event; keeping an existing event discards
// nothing.
func promptDecider(in io.Reader, out io.Writer, loc *time.Location) conflict.Decider {
	scanner := bufio.NewScanner(in)
	return conflict.DeciderFunc(func(ctx context.Context, set conflict.Set) (conflict.Resolution, error) {
		printConflicts(out, set, loc)
		for {
			_, _ = fmt.Fprintf(out, "Keep which event? [%s] (%s, an event id, or 'abort'): ",
				conflict.CandidateID, conflict.CandidateID)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return conflict.Resolution{}, err
				}
				return conflict.Resolution{}, fmt.Errorf("%w: no answer", conflict.ErrResolutionRejected)
			}
			if err := ctx.Err(); err != nil {
				return conflict.Resolution{}, err
			}

			answer := strings.TrimSpace(scanner.Text())
			switch {
			case answer == "" || answer == conflict.CandidateID:
				return conflict.Resolution{KeepID: conflict.CandidateID, DiscardIDs: set.IDs()}, nil
			case answer == "abort" || answer == "q":
				return conflict.Resolution{}, conflict.ErrResolutionRejected
			case set.Contains(answer):
				return conflict.Resolution{KeepID: answer}, nil
			default:
				_, _ = fmt.Fprintf(out, "%q is not one of the conflicting events\n", answer)
			}
		}
	})
}
