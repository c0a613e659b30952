package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/config"
	"github.com/teemow/slotwise/internal/conflict"
	"github.com/teemow/slotwise/internal/engine"
	"github.com/teemow/slotwise/internal/instrumentation"
	"github.com/teemow/slotwise/internal/server"
	"github.com/teemow/slotwise/internal/tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport   string
		httpAddr    string
		metricsAddr string
		yolo        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start a Model Context Protocol (MCP) server so AI assistants can inspect
and reschedule events through the engine.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp

Safety Mode:
  By default the server is read-only: events can be listed, checked for
  conflicts and moved as pending changes, but nothing is written to the
  event source. Use --yolo to enable the commit and create tools.

Pending changes live in the server process and are lost when it stops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch transport {
			case transportStdio, transportStreamableHTTP:
			default:
				return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cmd, opts, serveOptions{
				transport:   transport,
				httpAddr:    httpAddr,
				metricsAddr: metricsAddr,
				readOnly:    !yolo,
			})
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable tools that write to the event source")
	return cmd
}

type serveOptions struct {
	transport   string
	httpAddr    string
	metricsAddr string
	readOnly    bool
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, so serveOptions) (err error) {
	instrConfig := opts.instrumentationConfig()
	instrConfig.Enabled = so.metricsAddr != "" ||
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

	if so.readOnly && opts.cfg.Commit.Mode == config.CommitImmediate {
		opts.logger.Info("read-only server, releases stay pending", slog.String("commit_mode", config.CommitBuffered))
		opts.cfg.Commit.Mode = config.CommitBuffered
	}

	toolServer, err := tools.New(tools.Config{
		Source:   src,
		Logger:   opts.logger,
		Metrics:  provider.Metrics(),
		ReadOnly: so.readOnly,
		NewEngine: func(decider conflict.Decider) (*engine.Engine, error) {
			return opts.newEngine(src, engineDeps{
				decider: decider,
				metrics: provider.Metrics(),
				audit:   provider.Audit(),
			})
		},
	})
	if err != nil {
		return err
	}
	defer toolServer.Close()

	if so.metricsAddr != "" && provider.Enabled() {
		metricsServer, serverErr := startMetricsServer(opts, so.metricsAddr, provider, src, toolServer.Engine())
		if serverErr != nil {
			return serverErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			err = errors.Join(err, metricsServer.Shutdown(shutdownCtx))
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("slotwise", version,
		mcpserver.WithToolCapabilities(true),
	)
	toolServer.Register(mcpSrv)

	opts.logger.Info("starting MCP server",
		slog.String("transport", so.transport),
		slog.String("source", opts.cfg.Source),
		slog.Bool("read_only", so.readOnly))

	if so.transport == transportStreamableHTTP {
		return runStreamableHTTPServer(ctx, mcpSrv, so.httpAddr, opts.logger)
	}
	return runStdioServer(ctx, mcpSrv, cmd.InOrStdin(), cmd.OutOrStdout())
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, in io.Reader, out io.Writer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		err := mcpserver.NewStdioServer(mcpSrv).Listen(ctx, in, out)
		if err != nil && !errors.Is(err, context.Canceled) {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	logger.Info("MCP server listening", slog.String("addr", addr), slog.String("endpoint", "/mcp"))

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
