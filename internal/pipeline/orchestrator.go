// Package pipeline sequences chunking, synthesis, evolution and judgment for
// a document and aggregates the accepted candidates.
//
// A run moves through the stages init → chunked → synthesized → evolved →
// judged → done without skipping any. Generation failures only shrink the
// output of the stage where they happen. The single fatal condition is an
// invalid chunk size, which is reported before any generator call.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/chunking"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/critic"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/resilience"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

// Orchestrator runs the evolution-and-validation pipeline.
// It holds no per-run state and may be used for concurrent runs.
type Orchestrator struct {
	synthesizer *synthesis.Synthesizer
	engine      *evolution.Engine
	critic      *critic.Critic

	concurrency int
	logger      *slog.Logger
	metrics     resilience.Metrics
	emitter     *emitter
	newRunID    func() string
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	concurrency       int
	logger            *slog.Logger
	metrics           resilience.Metrics
	sink              events.EventSink
	table             *evolution.PolicyTable
	synthesisTemplate *prompt.Template
	criticTemplate    *prompt.Template
	newRunID          func() string
}

// WithConcurrency bounds the number of generator calls each stage keeps in
// flight. The default of 1 runs every call sequentially.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = max(n, 1) }
}

// WithLogger sets the logger for stage transitions and soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records per-stage counts and run duration.
func WithMetrics(m resilience.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventSink emits a pipeline event per synthesized segment, evolved
// baseline, judged candidate and completed run.
func WithEventSink(s events.EventSink) Option {
	return func(o *options) { o.sink = s }
}

// WithPolicyTable replaces the built-in evolution policies.
func WithPolicyTable(t *evolution.PolicyTable) Option {
	return func(o *options) { o.table = t }
}

// WithSynthesisTemplate replaces the built-in baseline question template.
func WithSynthesisTemplate(t *prompt.Template) Option {
	return func(o *options) { o.synthesisTemplate = t }
}

// WithCriticTemplate replaces the built-in judgment template.
func WithCriticTemplate(t *prompt.Template) Option {
	return func(o *options) { o.criticTemplate = t }
}

// WithRunIDFunc overrides run identifier generation.
func WithRunIDFunc(f func() string) Option {
	return func(o *options) { o.newRunID = f }
}

// New creates an Orchestrator whose stages share gen.
func New(gen llm.Generator, opts ...Option) *Orchestrator {
	o := options{
		concurrency: 1,
		logger:      slog.Default(),
		metrics:     resilience.NewNoOpMetrics(),
		sink:        events.NewNoOpEventSink(),
		newRunID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Orchestrator{
		synthesizer: synthesis.New(gen,
			synthesis.WithTemplate(o.synthesisTemplate),
			synthesis.WithLogger(o.logger)),
		engine: evolution.New(gen,
			evolution.WithPolicyTable(o.table),
			evolution.WithConcurrency(o.concurrency),
			evolution.WithLogger(o.logger)),
		critic: critic.New(gen,
			critic.WithTemplate(o.criticTemplate),
			critic.WithLogger(o.logger)),
		concurrency: o.concurrency,
		logger:      o.logger.With("component", "orchestrator"),
		metrics:     o.metrics,
		emitter:     &emitter{sink: o.sink, logger: o.logger},
		newRunID:    o.newRunID,
	}
}

// Policies returns the policy names applied to every baseline, in order.
func (o *Orchestrator) Policies() []domain.Policy { return o.engine.Table().Policies() }

// Run executes the full pipeline on document and returns the accepted set
// with its trace. The only error is domain.ErrInvalidConfiguration.
func (o *Orchestrator) Run(ctx context.Context, document string, maxWords int) (*domain.RunResult, error) {
	req, err := domain.NewRunRequest(document, maxWords)
	if err != nil {
		return nil, err
	}

	r := o.start(ctx)
	evolutions, segments, err := o.evolve(ctx, r, req)
	if err != nil {
		return nil, err
	}

	trace := o.judgeAll(ctx, r, evolutions)
	r.transition(ctx, domain.StageJudged, "candidates", countCandidates(evolutions))

	result := Aggregate(r.id, segments, trace)
	r.transition(ctx, result.Stage, "accepted", len(result.Accepted))

	o.record(result, time.Since(r.started))
	o.emitter.runCompleted(ctx, r.id, result)
	return result, nil
}

// RunEvolutions executes chunking, synthesis and evolution only and returns
// one Evolution per surviving baseline, in segment order.
func (o *Orchestrator) RunEvolutions(ctx context.Context, document string, maxWords int) ([]domain.Evolution, error) {
	req, err := domain.NewRunRequest(document, maxWords)
	if err != nil {
		return nil, err
	}

	evolutions, _, err := o.evolve(ctx, o.start(ctx), req)
	return evolutions, err
}

func (o *Orchestrator) evolve(ctx context.Context, r *run, req domain.RunRequest) ([]domain.Evolution, int, error) {
	segments, err := chunking.Chunk(req.Document, req.ChunkSize)
	if err != nil {
		return nil, 0, err
	}
	r.transition(ctx, domain.StageChunked, "segments", len(segments))

	baselines := o.synthesizeAll(ctx, r, segments)
	r.transition(ctx, domain.StageSynthesized, "baselines", len(baselines))

	evolutions := o.evolveAll(ctx, r, baselines)
	r.transition(ctx, domain.StageEvolved, "candidates", countCandidates(evolutions))

	return evolutions, len(segments), nil
}

// synthesizeAll returns the baselines of the segments that produced one, in
// segment order.
func (o *Orchestrator) synthesizeAll(ctx context.Context, r *run, segments []domain.Segment) []domain.BaselineQuestion {
	results := make([]*domain.BaselineQuestion, len(segments))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			q, ok := o.synthesizer.Synthesize(ctx, seg)
			if ok {
				results[i] = q
			}
			o.emitter.segmentSynthesized(ctx, r.id, seg.Index, q)
			return nil
		})
	}
	_ = g.Wait()

	baselines := make([]domain.BaselineQuestion, 0, len(segments))
	for _, q := range results {
		if q != nil {
			baselines = append(baselines, *q)
		}
	}
	return baselines
}

func (o *Orchestrator) evolveAll(ctx context.Context, r *run, baselines []domain.BaselineQuestion) []domain.Evolution {
	evolutions := make([]domain.Evolution, len(baselines))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, b := range baselines {
		g.Go(func() error {
			evolutions[i] = o.engine.Evolve(ctx, b)
			o.emitter.questionEvolved(ctx, r.id, evolutions[i])
			return nil
		})
	}
	_ = g.Wait()

	return evolutions
}

// judgeAll judges every present candidate and builds the trace. Absent
// slots are carried into the trace without a verdict.
func (o *Orchestrator) judgeAll(ctx context.Context, r *run, evolutions []domain.Evolution) []domain.TraceEntry {
	trace := make([]domain.TraceEntry, len(evolutions))
	for i, evo := range evolutions {
		trace[i] = domain.TraceEntry{Baseline: evo.Baseline, Slots: make([]domain.JudgedSlot, len(evo.Slots))}
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, evo := range evolutions {
		for j, slot := range evo.Slots {
			trace[i].Slots[j].Policy = slot.Policy
			if slot.Candidate == nil {
				continue
			}
			g.Go(func() error {
				v := o.critic.Judge(ctx, evo.Baseline, *slot.Candidate)
				trace[i].Slots[j].Candidate = slot.Candidate
				trace[i].Slots[j].Verdict = &v
				o.emitter.candidateJudged(ctx, r.id, v)
				return nil
			})
		}
	}
	_ = g.Wait()

	return trace
}

func (o *Orchestrator) record(result *domain.RunResult, elapsed time.Duration) {
	// Units leaving each stage: every candidate is judged, and only the
	// accepted ones reach done.
	counts := []struct {
		stage domain.Stage
		n     int
	}{
		{domain.StageChunked, result.Stats.Segments},
		{domain.StageSynthesized, result.Stats.Baselines},
		{domain.StageEvolved, result.Stats.Candidates},
		{domain.StageJudged, result.Stats.Candidates},
		{domain.StageDone, result.Stats.Accepted},
	}
	for _, c := range counts {
		o.metrics.IncrementCounter("pipeline.units", map[string]string{"stage": string(c.stage)}, float64(c.n))
	}
	o.metrics.RecordHistogram("pipeline.run.duration_ms", nil, float64(elapsed.Milliseconds()))
}

func countCandidates(evolutions []domain.Evolution) int {
	n := 0
	for _, evo := range evolutions {
		n += len(evo.Candidates())
	}
	return n
}

// run tracks the stage of a single execution for logging.
type run struct {
	id      string
	stage   domain.Stage
	started time.Time
	logger  *slog.Logger
}

func (o *Orchestrator) start(ctx context.Context) *run {
	r := &run{id: o.newRunID(), stage: domain.StageInit, started: time.Now()}
	r.logger = o.logger.With("run_id", r.id)
	r.logger.InfoContext(ctx, "pipeline run started", "stage", r.stage)
	return r
}

// transition advances to the next stage. to must be the successor of the
// current stage.
func (r *run) transition(ctx context.Context, to domain.Stage, countKey string, count int) {
	if next := r.stage.Next(); next != to {
		r.logger.ErrorContext(ctx, "unexpected stage transition", "from", r.stage, "to", to, "expected", next)
	}
	r.logger.InfoContext(ctx, "pipeline stage completed", "from", r.stage, "to", to, countKey, count)
	r.stage = to
}
