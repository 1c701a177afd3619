package domain

import (
	"fmt"
)

// DefaultChunkSize is the default maximum number of words per segment.
const DefaultChunkSize = 100

// RunRequest is the input of a single pipeline run.
type RunRequest struct {
	// Document is the raw source text. An empty document is valid and
	// produces an empty result.
	Document string `json:"document"`

	// ChunkSize bounds the number of words per segment.
	ChunkSize int `json:"chunk_size" validate:"min=1"`
}

// NewRunRequest builds a validated RunRequest.
func NewRunRequest(document string, chunkSize int) (RunRequest, error) {
	req := RunRequest{Document: document, ChunkSize: chunkSize}
	if err := req.Validate(); err != nil {
		return RunRequest{}, err
	}
	return req, nil
}

// Validate reports ErrInvalidConfiguration when the chunk size is not positive.
func (r RunRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: chunk size must be positive, got %d: %w", ErrInvalidConfiguration, r.ChunkSize, err)
	}
	return nil
}

// Stage is a step of the per-document run state machine.
// Transitions are strictly init → chunked → synthesized → evolved → judged → done.
type Stage string

// Run stages in transition order.
const (
	StageInit        Stage = "init"
	StageChunked     Stage = "chunked"
	StageSynthesized Stage = "synthesized"
	StageEvolved     Stage = "evolved"
	StageJudged      Stage = "judged"
	StageDone        Stage = "done"
)

var stageOrder = []Stage{StageInit, StageChunked, StageSynthesized, StageEvolved, StageJudged, StageDone}

// Next returns the stage that follows s. StageDone is terminal.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageDone
}

// JudgedSlot is one policy entry of a trace: the candidate, if generated, and
// its verdict, if judged. Verdict is nil exactly when Candidate is nil.
type JudgedSlot struct {
	Policy    Policy     `json:"policy"`
	Candidate *Candidate `json:"candidate,omitempty"`
	Verdict   *Verdict   `json:"verdict,omitempty"`
}

// TraceEntry is the diagnostic record for one baseline question.
type TraceEntry struct {
	Baseline BaselineQuestion `json:"baseline"`
	Slots    []JudgedSlot     `json:"slots"`
}

// RunStats counts the units that survived each stage.
type RunStats struct {
	Segments   int `json:"segments"`
	Baselines  int `json:"baselines"`
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
}

// RunResult is the final artifact of a pipeline run.
type RunResult struct {
	RunID string `json:"run_id"`
	Stage Stage  `json:"stage"`

	// Accepted is the accepted set: candidate texts whose verdict is true, in
	// baseline order and then policy order.
	Accepted []string `json:"accepted"`

	Trace []TraceEntry `json:"trace,omitempty"`
	Stats RunStats     `json:"stats"`
}

// AcceptedCandidates returns the accepted candidates with their provenance,
// in the same order as Accepted.
func (r *RunResult) AcceptedCandidates() []Candidate {
	var out []Candidate
	for _, entry := range r.Trace {
		for _, slot := range entry.Slots {
			if slot.Candidate != nil && slot.Verdict != nil && slot.Verdict.Accepted {
				out = append(out, *slot.Candidate)
			}
		}
	}
	return out
}
