package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Event types emitted while a run progresses.
const (
	EventSegmentSynthesized = "pipeline.segment_synthesized"
	EventQuestionEvolved    = "pipeline.question_evolved"
	EventCandidateJudged    = "pipeline.candidate_judged"
	EventRunCompleted       = "pipeline.run_completed"
)

// SegmentSynthesizedPayload records whether a baseline was derived for a segment.
type SegmentSynthesizedPayload struct {
	SegmentIndex int    `json:"segment_index"`
	Produced     bool   `json:"produced"`
	Question     string `json:"question,omitempty"`
}

// QuestionEvolvedPayload records which policies produced a candidate.
type QuestionEvolvedPayload struct {
	SegmentIndex int      `json:"segment_index"`
	Produced     []Policy `json:"produced"`
	Missing      []Policy `json:"missing,omitempty"`
}

// CandidateJudgedPayload records a single verdict.
type CandidateJudgedPayload struct {
	SegmentIndex int    `json:"segment_index"`
	Policy       Policy `json:"policy"`
	Accepted     bool   `json:"accepted"`
}

// NewQuestionEvolvedPayload summarizes which policies of evo produced a candidate.
func NewQuestionEvolvedPayload(evo Evolution) QuestionEvolvedPayload {
	payload := QuestionEvolvedPayload{SegmentIndex: evo.Baseline.SegmentIndex, Produced: []Policy{}}
	for _, slot := range evo.Slots {
		if slot.Present() {
			payload.Produced = append(payload.Produced, slot.Policy)
		} else {
			payload.Missing = append(payload.Missing, slot.Policy)
		}
	}
	return payload
}

// RunCompletedPayload summarizes a finished run.
type RunCompletedPayload struct {
	Stats    RunStats `json:"stats"`
	Accepted []string `json:"accepted"`
}

// GenerateIdempotencyKey creates a deterministic key for event deduplication.
// It hashes the run identifier together with an event specific suffix so that
// retries and replays of the same logical event produce the same key.
func GenerateIdempotencyKey(runID, eventSuffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(runID + eventSuffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// SegmentIdempotencyKey keys a segment synthesis event: H(run || ":seg:" || index).
func SegmentIdempotencyKey(runID string, segmentIndex int) string {
	return GenerateIdempotencyKey(runID, fmt.Sprintf(":seg:%d", segmentIndex))
}

// EvolutionIdempotencyKey keys an evolution event: H(run || ":evo:" || index).
func EvolutionIdempotencyKey(runID string, segmentIndex int) string {
	return GenerateIdempotencyKey(runID, fmt.Sprintf(":evo:%d", segmentIndex))
}

// VerdictIdempotencyKey keys a verdict event: H(run || ":verdict:" || index || "/" || policy).
func VerdictIdempotencyKey(runID string, c Candidate) string {
	return GenerateIdempotencyKey(runID, ":verdict:"+c.Key())
}

// RunCompletedIdempotencyKey keys the terminal run event.
func RunCompletedIdempotencyKey(runID string) string {
	return GenerateIdempotencyKey(runID, ":done")
}
