// Package cli implements the sdg command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/config"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/eventstore"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/resilience"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/worker"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// GeneratorFactory builds the text generator for a command.
type GeneratorFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics resilience.Metrics) (llm.Generator, error)

// TemporalDialer connects to the Temporal frontend.
type TemporalDialer func(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error)

// App carries the dependencies shared by all commands.
type App struct {
	NewGenerator GeneratorFactory
	DialTemporal TemporalDialer
	Stdin        io.Reader
	Stderr       io.Writer

	configPath string
}

// NewApp returns an App wired to the real LLM client and Temporal.
func NewApp() *App {
	return &App{
		NewGenerator: func(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics resilience.Metrics) (llm.Generator, error) {
			return worker.InitializeGenerator(ctx, cfg, logger, metrics)
		},
		DialTemporal: dialTemporal,
		Stdin:        os.Stdin,
		Stderr:       os.Stderr,
	}
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand(NewApp()).Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "sdg",
		Short:         "Generate and validate evolved synthetic questions",
		Long:          `sdg derives a baseline question from each chunk of a document, rewrites it with every configured evolution policy and keeps the rewrites a judge model accepts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to the YAML configuration file")

	root.AddCommand(
		newRunCmd(app),
		newPoliciesCmd(app),
		newWorkerCmd(app),
		newSubmitCmd(app),
		newVersionCmd(),
	)
	return root
}

func (a *App) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

// runtime holds per-command infrastructure built from the configuration.
type runtime struct {
	logger  *slog.Logger
	metrics resilience.Metrics
	sink    events.EventSink
	closers []func() error
}

func (a *App) newRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{
		logger:  cfg.NewLogger(a.Stderr),
		metrics: resilience.NewNoOpMetrics(),
		sink:    events.NewNoOpEventSink(),
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		rt.metrics = resilience.NewPrometheusMetrics(reg)
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("metrics server stopped", "error", err)
			}
		}()
		rt.closers = append(rt.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}

	if cfg.Events.SQLitePath != "" {
		store, err := eventstore.Open(cfg.Events.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %w", err)
		}
		rt.sink = store
		rt.closers = append(rt.closers, store.Close)
	}

	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("failed to release resource", "error", err)
		}
	}
}

func dialTemporal(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

func readInput(app *App, path string) (string, error) {
	if path == "" {
		return "", errors.New("--input is required")
	}
	if path == "-" {
		data, err := io.ReadAll(app.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
