package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/slotwise/internal/calendar"
	"github.com/teemow/slotwise/internal/config"
	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/frame"
	"github.com/teemow/slotwise/internal/google"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/logging"
	"github.com/teemow/slotwise/internal/store"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the root command
func SetVersion(v string) {
	version = v
}

// rootOptions carries the state shared by every subcommand once the
// persistent pre-run has loaded the configuration.
type rootOptions struct {
	configFile string
	v          *viper.Viper

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "slotwise",
		Short: "Drag and resize calendar events on a snapping time grid",
		Long: `slotwise is an interactive scheduling engine. Pointer gestures move or
resize events on a time grid that snaps to fixed intervals. Changes are kept
as pending overlays with undo and redo until they are committed to an event
source, at which point conflicting events are detected and resolved.

Event sources:
  - local: a directory of JSON records (default ~/.slotwise/events)
  - google: a Google Calendar (run 'slotwise auth' first)`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	cmd.SetVersionTemplate(`{{printf "slotwise version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (default: .slotwise.yaml in ./ or $HOME)")
	flags.String("source", config.SourceLocal, "Event source: local or google")
	flags.String("store", store.DefaultPath, "Local event store directory")
	flags.String("account", google.DefaultAccount, "Google account name")
	flags.String("calendar", calendar.DefaultCalendarID, "Google calendar ID")
	flags.String("timezone", "UTC", "IANA timezone of the grid")
	flags.String("commit-mode", config.CommitBuffered, "Commit mode: buffered or immediate")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")

	for key, name := range map[string]string{
		"source":             "source",
		"store.path":         "store",
		"google.account":     "account",
		"google.calendar_id": "calendar",
		"timezone":           "timezone",
		"commit.mode":        "commit-mode",
		"log.level":          "log-level",
		"log.format":         "log-format",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(newEventsCmd(opts))
	cmd.AddCommand(newSimulateCmd(opts))
	cmd.AddCommand(newConflictsCmd(opts))
	cmd.AddCommand(newCreateCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newReplayCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAuthCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	if cfg.File != "" {
		logger.Debug("loaded config", slog.String("file", cfg.File))
	}
	return nil
}

// openSource opens the configured event source.
func (o *rootOptions) openSource(ctx context.Context, metrics *instrumentation.Metrics) (conflict.EventSource, error) {
	adapter := logging.NewSlogAdapter(o.logger)

	switch o.cfg.Source {
	case config.SourceGoogle:
		return calendar.NewSource(ctx, o.cfg.Google.Account, o.cfg.Google.CalendarID,
			google.NewFileTokenProvider(),
			calendar.WithLogger(adapter),
			calendar.WithMetrics(metrics))
	default:
		return o.openStore(metrics)
	}
}

func (o *rootOptions) openStore(metrics *instrumentation.Metrics) (*store.Store, error) {
	return store.Open(o.cfg.Store.Path,
		store.WithLogger(logging.NewSlogAdapter(o.logger)),
		store.WithMetrics(metrics))
}

// instrumentationConfig maps the telemetry and audit sections onto the
// instrumentation settings. Exporting stays off until a command enables it.
func (o *rootOptions) instrumentationConfig() instrumentation.Config {
	t := o.cfg.Telemetry
	return instrumentation.Config{
		ServiceName:     "slotwise",
		ServiceVersion:  version,
		Metrics:         t.Metrics,
		Tracing:         t.Tracing,
		OTLPEndpoint:    t.OTLPEndpoint,
		OTLPInsecure:    t.OTLPInsecure,
		SampleRate:      t.SampleRate,
		EventTypeLabels: t.EventTypeLabels,
		Audit: instrumentation.AuditConfig{
			Enabled:    o.cfg.Audit.Enabled,
			IncludePII: o.cfg.Audit.IncludeContacts,
		},
	}
}

// engineDeps are the optional collaborators of newEngine.
type engineDeps struct {
	decider   conflict.Decider
	scheduler frame.Scheduler
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
	onCommit  func(engine.Result)
}

func (o *rootOptions) newEngine(src conflict.EventSource, deps engineDeps) (*engine.Engine, error) {
	mode, err := engine.ParseMode(o.cfg.Commit.Mode)
	if err != nil {
		return nil, err
	}
	audit := deps.audit
	if audit == nil {
		audit = instrumentation.NewAuditLoggerWithConfig(o.logger, o.instrumentationConfig().Audit)
	}
	return engine.New(engine.Config{
		Grid:       o.cfg.Grid(),
		Mode:       mode,
		Source:     src,
		Decider:    deps.decider,
		SourceName: o.cfg.Source,
		Logger:     o.logger,
		Metrics:    deps.metrics,
		Audit:      audit,
		Scheduler:  deps.scheduler,
		OnCommit:   deps.onCommit,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of slotwise",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slotwise version %s\n", version)
		},
	}
}
