package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/config"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/pipeline"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

type runOptions struct {
	input       string
	chunkSize   int
	concurrency int
	trace       bool
	format      string
}

func newRunCmd(app *App) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline in process and print the accepted questions",
		Example: `  sdg run --input doc.txt
  cat doc.txt | sdg run -i - --chunk-size 50 --trace --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, app, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Document to process, or - for stdin")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Maximum words per segment (overrides config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Generator calls in flight per stage (overrides config)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Include the per-baseline trace in the output")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")
	return cmd
}

func runPipeline(cmd *cobra.Command, app *App, opts runOptions) error {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	chunkSize := cfg.ChunkSize
	if cmd.Flags().Changed("chunk-size") {
		chunkSize = opts.chunkSize
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}

	document, err := readInput(app, opts.input)
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

	pipelineOpts, err := orchestratorOptions(cfg)
	if err != nil {
		return err
	}
	orch := pipeline.New(gen, append(pipelineOpts,
		pipeline.WithLogger(rt.logger),
		pipeline.WithMetrics(rt.metrics),
		pipeline.WithEventSink(rt.sink))...)

	result, err := orch.Run(cmd.Context(), document, chunkSize)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result, opts.format, opts.trace)
}

func orchestratorOptions(cfg *config.Config) ([]pipeline.Option, error) {
	table, err := cfg.PolicyTable()
	if err != nil {
		return nil, err
	}
	synth, err := cfg.SynthesisTemplate()
	if err != nil {
		return nil, err
	}
	judge, err := cfg.CriticTemplate()
	if err != nil {
		return nil, err
	}
	return []pipeline.Option{
		pipeline.WithPolicyTable(table),
		pipeline.WithSynthesisTemplate(synth),
		pipeline.WithCriticTemplate(judge),
		pipeline.WithConcurrency(cfg.Concurrency),
	}, nil
}

func writeResult(w io.Writer, result *domain.RunResult, format string, trace bool) error {
	if !trace {
		stripped := *result
		stripped.Trace = nil
		result = &stripped
	}

	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, q := range result.Accepted {
		if _, err := fmt.Fprintln(w, q); err != nil {
			return err
		}
	}
	if trace {
		return writeTrace(w, result)
	}
	return nil
}

// writeTrace prints the stats line and one block per baseline. Candidate
// texts are printed as generated; they are already trimmed.
func writeTrace(w io.Writer, result *domain.RunResult) error {
	if _, err := fmt.Fprintf(w, "\n# run %s: %d segments, %d baselines, %d candidates, %d accepted\n",
		result.RunID, result.Stats.Segments, result.Stats.Baselines, result.Stats.Candidates, result.Stats.Accepted); err != nil {
		return err
	}
	for _, entry := range result.Trace {
		if _, err := fmt.Fprintf(w, "[%d] %s\n", entry.Baseline.SegmentIndex, entry.Baseline.Text); err != nil {
			return err
		}
		for _, slot := range entry.Slots {
			if _, err := fmt.Fprintln(w, traceLine(slot)); err != nil {
				return err
			}
		}
	}
	return nil
}

func traceLine(slot domain.JudgedSlot) string {
	switch {
	case slot.Candidate == nil:
		return fmt.Sprintf("    %-12s (not generated)", slot.Policy)
	case slot.Verdict != nil && slot.Verdict.Accepted:
		return fmt.Sprintf("    %-12s ACCEPT  %s", slot.Policy, slot.Candidate.Text)
	default:
		return fmt.Sprintf("    %-12s REJECT  %s", slot.Policy, slot.Candidate.Text)
	}
}
