package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/worker"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/workflow"
)

func newWorkerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for the evolution workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			rt, err := app.newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			gen, err := app.NewGenerator(cmd.Context(), cfg, rt.logger, rt.metrics)
			if err != nil {
				return err
			}
			acts, err := worker.InitializeActivities(cfg, gen, rt.sink, rt.logger)
			if err != nil {
				return err
			}

			c, err := app.DialTemporal(cfg.Temporal, rt.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{})
			worker.RegisterAll(w, acts)

			rt.logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "namespace", cfg.Temporal.Namespace)
			return w.Run(sdkworker.InterruptCh())
		},
	}
}

func newSubmitCmd(app *App) *cobra.Command {
	var (
		input     string
		chunkSize int
		format    string
		trace     bool
		wait      bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start an evolution workflow on Temporal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("chunk-size") {
				chunkSize = cfg.ChunkSize
			}
			document, err := readInput(app, input)
			if err != nil {
				return err
			}
			req, err := domain.NewRunRequest(document, chunkSize)
			if err != nil {
				return err
			}

			c, err := app.DialTemporal(cfg.Temporal, cfg.NewLogger(app.Stderr))
			if err != nil {
				return err
			}
			defer c.Close()

			run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
				ID:        "sdg-" + uuid.New().String(),
				TaskQueue: cfg.Temporal.TaskQueue,
			}, workflow.EvolutionWorkflow, req)
			if err != nil {
				return fmt.Errorf("failed to start workflow: %w", err)
			}
			if !wait {
				cmd.Printf("workflow_id=%s run_id=%s\n", run.GetID(), run.GetRunID())
				return nil
			}

			var result domain.RunResult
			if err := run.Get(cmd.Context(), &result); err != nil {
				return fmt.Errorf("workflow failed: %w", err)
			}
			return writeResult(cmd.OutOrStdout(), &result, format, trace)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Document to process, or - for stdin")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Maximum words per segment (overrides config)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	cmd.Flags().BoolVar(&trace, "trace", false, "Include the per-baseline trace in the output")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the workflow result")
	return cmd
}
