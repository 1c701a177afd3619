package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/activities"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/config"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/critic"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/resilience"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/activity"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

// InitializeGenerator builds the LLM client described by cfg.
func InitializeGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics resilience.Metrics) (*llm.Client, error) {
	client, err := llm.NewClient(ctx, cfg.ClientConfig(),
		llm.WithLogger(logger),
		llm.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// InitializeActivities builds the workflow activities around gen using the
// templates and policy table of cfg. A nil sink disables event emission.
func InitializeActivities(cfg *config.Config, gen llm.Generator, sink events.EventSink, logger *slog.Logger) (*activities.Activities, error) {
	table, err := cfg.PolicyTable()
	if err != nil {
		return nil, err
	}
	synthTmpl, err := cfg.SynthesisTemplate()
	if err != nil {
		return nil, err
	}
	criticTmpl, err := cfg.CriticTemplate()
	if err != nil {
		return nil, err
	}

	return activities.NewActivities(
		activity.NewBaseActivities(sink),
		synthesis.New(gen, synthesis.WithTemplate(synthTmpl), synthesis.WithLogger(logger)),
		evolution.New(gen,
			evolution.WithPolicyTable(table),
			evolution.WithConcurrency(cfg.Concurrency),
			evolution.WithLogger(logger)),
		critic.New(gen, critic.WithTemplate(criticTmpl), critic.WithLogger(logger)),
	), nil
}
