package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/pipeline"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// fixtureGenerator answers by prompt category so results do not depend on
// call order:
//
//	BASELINE::Alpha beta    → Q1?        BASELINE::gamma delta → Q2?
//	COMPLEXITY::Qn?         → Cn?
//	COMPRESSION::Qn?        → Con?
//	REPHRASE::Qn?           → Rn?
//	JUDGE::<candidate>      → VALID for Co* and R*, INVALID otherwise
//
// fail, when set, is consulted with the zero-based call index.
type fixtureGenerator struct {
	mu      sync.Mutex
	prompts []string
	fail    func(call int, prompt string) bool
}

func (g *fixtureGenerator) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	call := len(g.prompts)
	g.prompts = append(g.prompts, p)
	g.mu.Unlock()

	if g.fail != nil && g.fail(call, p) {
		return "", errors.New("injected failure")
	}

	category, body, _ := strings.Cut(p, "::")
	n := strings.TrimSuffix(strings.TrimPrefix(body, "Q"), "?")
	switch category {
	case "BASELINE":
		switch body {
		case "Alpha beta":
			return "Q1?", nil
		case "gamma delta":
			return "Q2?", nil
		}
		return "Q" + strings.Fields(body)[0] + "?", nil
	case "COMPLEXITY":
		return "C" + n + "?", nil
	case "COMPRESSION":
		return "Co" + n + "?", nil
	case "REPHRASE":
		return "R" + n + "?", nil
	case "JUDGE":
		if strings.HasPrefix(body, "Co") || strings.HasPrefix(body, "R") {
			return "VALID", nil
		}
		return "INVALID", nil
	}
	return "", errors.New("unexpected prompt " + p)
}

func (g *fixtureGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fixtureGenerator) callsWithPrefix(prefix string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// fixtureOptions wires the tagged templates understood by fixtureGenerator.
func fixtureOptions(t *testing.T) []pipeline.Option {
	t.Helper()

	table, err := evolution.ParsePolicyTable([]evolution.PolicyDef{
		{Name: "complexity", Template: "COMPLEXITY::{{.Question}}"},
		{Name: "compression", Template: "COMPRESSION::{{.Question}}"},
		{Name: "rephrase", Template: "REPHRASE::{{.Question}}"},
	})
	require.NoError(t, err)
	synth, err := prompt.Parse("synthesis", "BASELINE::{{.Segment}}", prompt.SynthesisData{})
	require.NoError(t, err)
	judge, err := prompt.Parse("critic", "JUDGE::{{.Candidate}}", prompt.JudgmentData{})
	require.NoError(t, err)

	return []pipeline.Option{
		pipeline.WithPolicyTable(table),
		pipeline.WithSynthesisTemplate(synth),
		pipeline.WithCriticTemplate(judge),
		pipeline.WithRunIDFunc(func() string { return "run-1" }),
	}
}

// recordingMetrics captures counter increments by stage.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	observed int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: make(map[string]float64)}
}

func (m *recordingMetrics) IncrementCounter(name string, tags map[string]string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name+"/"+tags["stage"]] += value
}

func (m *recordingMetrics) RecordHistogram(string, map[string]string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}

func (m *recordingMetrics) SetGauge(string, map[string]string, float64) {}
