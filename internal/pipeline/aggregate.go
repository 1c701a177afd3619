package pipeline

import "github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"

// Aggregate builds the final RunResult from the judged trace.
// Accepted lists the text of every candidate with a true verdict, in
// baseline order and then policy order. Entries without accepted candidates
// contribute nothing.
func Aggregate(runID string, segments int, trace []domain.TraceEntry) *domain.RunResult {
	result := &domain.RunResult{
		RunID:    runID,
		Stage:    domain.StageDone,
		Accepted: []string{},
		Trace:    trace,
		Stats:    domain.RunStats{Segments: segments, Baselines: len(trace)},
	}

	for _, entry := range trace {
		for _, slot := range entry.Slots {
			if slot.Candidate == nil {
				continue
			}
			result.Stats.Candidates++
			if slot.Verdict != nil && slot.Verdict.Accepted {
				result.Accepted = append(result.Accepted, slot.Candidate.Text)
				result.Stats.Accepted++
			}
		}
	}
	return result
}
