package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/models"
	"github.com/teemow/slotwise/internal/pointer"
	"github.com/teemow/slotwise/internal/server"
)

// Replay actions.
const (
	actionBegin   = "begin"
	actionMove    = "move"
	actionRelease = "release"
	actionCancel  = "cancel"
	actionCommit  = "commit"
	actionDiscard = "discard"
	actionUndo    = "undo"
	actionRedo    = "redo"
	actionClear   = "clear"
	actionWait    = "wait"
)

// replayStep is one line of a replay script.
type replayStep struct {
	Action  string  `json:"action"`
	Event   string  `json:"event,omitempty"`
	Op      string  `json:"op,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	DelayMS int     `json:"delay_ms,omitempty"`
}

func (s replayStep) delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// readReplay parses a JSON-lines script. Blank lines and lines starting
// with # are ignored.
func readReplay(r io.Reader) ([]replayStep, error) {
	var steps []replayStep
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var step replayStep
		if err := json.Unmarshal(text, &step); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch step.Action {
		case actionBegin:
			if step.Event == "" {
				return nil, fmt.Errorf("line %d: begin needs an event", line)
			}
			if _, err := models.ParseOperation(step.Op); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		case actionDiscard:
			if step.Event == "" {
				return nil, fmt.Errorf("line %d: discard needs an event", line)
			}
		case actionMove, actionRelease, actionCancel, actionCommit, actionUndo, actionRedo, actionClear, actionWait:
		default:
			return nil, fmt.Errorf("line %d: unknown action %q", line, step.Action)
		}
		steps = append(steps, step)
	}
	return steps, scanner.Err()
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		metricsAddr string
		hold        bool
		resolve     resolveFlags
	)

	cmd := &cobra.Command{
		Use:   "replay <script.jsonl|->",
		Short: "Replay a pointer script through the engine in real time",
		Long: `Replay a JSON-lines pointer script. Each line is one action:

  {"action":"begin","event":"<id>","op":"drag","x":0,"y":0}
  {"action":"move","x":0,"y":40,"delay_ms":16}
  {"action":"release"}
  {"action":"commit"}              commit every pending change
  {"action":"commit","event":"<id>"}
  {"action":"undo"} {"action":"redo"} {"action":"discard","event":"<id>"}
  {"action":"cancel"} {"action":"clear"} {"action":"wait","delay_ms":500}

Pointer samples are coalesced to one update per frame, as they would be in
an interactive client. With --metrics-addr the Prometheus metrics and health
endpoints are served while the script runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			steps, err := readReplay(r)
			if err != nil {
				return fmt.Errorf("invalid replay script: %w", err)
			}
			decider, err := resolve.decider(cmd, opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runReplay(ctx, cmd, opts, steps, decider, metricsAddr, hold)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address while replaying (e.g. :9090)")
	cmd.Flags().BoolVar(&hold, "hold", false, "Keep serving metrics after the script finishes until interrupted")
	resolve.register(cmd)
	return cmd
}

func runReplay(ctx context.Context, cmd *cobra.Command, opts *rootOptions, steps []replayStep, decider conflict.Decider, metricsAddr string, hold bool) (err error) {
	instrConfig := opts.instrumentationConfig()
	// Push exporters work without a listener; prometheus needs --metrics-addr.
	instrConfig.Enabled = metricsAddr != "" ||
		instrConfig.Metrics != instrumentation.ExporterPrometheus ||
		instrConfig.Tracing != instrumentation.ExporterNone
	provider, err := instrumentation.NewProvider(ctx, instrConfig, opts.logger)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		err = errors.Join(err, provider.Shutdown(shutdownCtx))
	}()

	src, err := opts.openSource(ctx, provider.Metrics())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	loc := opts.cfg.Grid().Location
	eng, err := opts.newEngine(src, engineDeps{
		decider: decider,
		metrics: provider.Metrics(),
		audit:   provider.Audit(),
		onCommit: func(res engine.Result) {
			printResult(out, res, loc)
		},
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if metricsAddr != "" && provider.Enabled() {
		metricsServer, serverErr := startMetricsServer(opts, metricsAddr, provider, src, eng)
		if serverErr != nil {
			return serverErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			err = errors.Join(err, metricsServer.Shutdown(shutdownCtx))
		}()
	}

	if err := playSteps(ctx, eng, steps, out, loc); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s %d step(s), %d pending change(s)\n",
		bold.Sprint("Replayed"), len(steps), eng.Store().Len())

	if hold && metricsAddr != "" {
		opts.logger.Info("replay finished, serving metrics until interrupted", slog.String("addr", metricsAddr))
		<-ctx.Done()
	}
	return nil
}

// playSteps drives the engine. Gesture errors abort the replay; commit
// failures are printed and the replay continues.
func playSteps(ctx context.Context, eng *engine.Engine, steps []replayStep, out io.Writer, loc *time.Location) error {
	for i, step := range steps {
		if d := step.delay(); d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		sample := pointer.Sample{X: step.X, Y: step.Y, At: time.Now()}
		switch step.Action {
		case actionBegin:
			op, _ := models.ParseOperation(step.Op)
			if err := eng.Begin(ctx, step.Event, op, sample); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		case actionMove:
			eng.Feed().Push(sample)
		case actionRelease:
			res, changed := eng.Release(ctx)
			switch {
			case res.Err != nil && eng.Mode() == engine.ModeBuffered:
				return fmt.Errorf("step %d: %w", i+1, res.Err)
			case changed && eng.Mode() == engine.ModeBuffered:
				if patch, ok := eng.Store().Get(res.EventID); ok && patch.Start != nil && patch.End != nil {
					_, _ = fmt.Fprintf(out, "%s %s -> %s\n", pending.Sprint("Pending"), res.EventID,
						formatRange(models.Range{Start: *patch.Start, End: *patch.End}, loc))
				}
			case !changed:
				_, _ = fmt.Fprintln(out, faint.Sprint("Released without change"))
			}
		case actionCancel:
			eng.Cancel()
		case actionCommit:
			if step.Event != "" {
				eng.CommitOne(ctx, step.Event)
			} else {
				eng.CommitAll(ctx)
			}
		case actionDiscard:
			eng.Discard(step.Event)
		case actionUndo:
			eng.Undo()
		case actionRedo:
			eng.Redo()
		case actionClear:
			eng.Clear()
		case actionWait:
		}
	}
	return nil
}

// startMetricsServer serves /metrics and the health endpoints for eng in the
// background. The caller shuts it down.
func startMetricsServer(opts *rootOptions, addr string, provider *instrumentation.Provider, src conflict.EventSource, eng *engine.Engine) (*server.MetricsServer, error) {
	health := server.NewHealthChecker()
	health.AddCheck("source", func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := src.Events(checkCtx)
		return err
	})
	health.SetStats(func() map[string]int {
		stats := map[string]int{"pending_changes": eng.Store().Len()}
		if _, ok := eng.Controller().Session(); ok {
			stats["active_sessions"] = 1
		}
		return stats
	})

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Health:                  health,
		Logger:                  opts.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	go func() {
		if err := metricsServer.Start(); err != nil {
			opts.logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	health.SetReady(true)
	return metricsServer, nil
}
