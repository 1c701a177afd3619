// Package domain provides the core value types for synthetic question evolution.
// Segments, baseline questions, candidates and verdicts flow between the
// pipeline stages as explicit values; no stage shares mutable state with
// another. Absence of a generated value is modeled with nil pointers rather
// than placeholder strings so that cardinality shrinks instead of lying.
package domain

import (
	"fmt"
	"strings"
)

// Segment is an ordered, contiguous window of a document's words.
// Index is the zero-based position of the window in the document.
type Segment struct {
	Index int    `json:"index" validate:"min=0"`
	Text  string `json:"text" validate:"required"`
}

// WordCount reports the number of whitespace-delimited words in the segment.
func (s Segment) WordCount() int { return countWords(s.Text) }

// BaselineQuestion is the question derived from exactly one Segment.
type BaselineQuestion struct {
	SegmentIndex int    `json:"segment_index" validate:"min=0"`
	Text         string `json:"text" validate:"required"`
}

// Policy names an evolution transformation. The built-in policies are
// complexity, compression and rephrase; configured tables may add more.
type Policy string

// Built-in evolution policies in canonical order.
const (
	// PolicyComplexity rewrites the question to require multi-step reasoning.
	PolicyComplexity Policy = "complexity"

	// PolicyCompression rewrites the question more concisely.
	PolicyCompression Policy = "compression"

	// PolicyRephrase asks for the same information in different words.
	PolicyRephrase Policy = "rephrase"
)

// DefaultPolicies returns the built-in policies in canonical order.
func DefaultPolicies() []Policy {
	return []Policy{PolicyComplexity, PolicyCompression, PolicyRephrase}
}

// String returns the policy name.
func (p Policy) String() string { return string(p) }

// Candidate is a question produced by applying one Policy to one BaselineQuestion.
type Candidate struct {
	SegmentIndex int    `json:"segment_index" validate:"min=0"`
	Policy       Policy `json:"policy" validate:"required"`
	Text         string `json:"text" validate:"required"`
}

// Key identifies the (baseline, policy) pair a candidate traces back to.
func (c Candidate) Key() string { return fmt.Sprintf("%d/%s", c.SegmentIndex, c.Policy) }

// CandidateSlot is one entry of the policy → candidate mapping.
// A nil Candidate means generation failed for that policy.
type CandidateSlot struct {
	Policy    Policy     `json:"policy"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Present reports whether the slot holds a candidate.
func (s CandidateSlot) Present() bool { return s.Candidate != nil }

// Evolution pairs a baseline question with its per-policy candidates.
// Slots are ordered by the policy table, never by completion order.
type Evolution struct {
	Baseline BaselineQuestion `json:"baseline"`
	Slots    []CandidateSlot  `json:"slots"`
}

// Candidate returns the candidate produced for policy, if any.
func (e Evolution) Candidate(policy Policy) (*Candidate, bool) {
	for _, slot := range e.Slots {
		if slot.Policy == policy {
			return slot.Candidate, slot.Candidate != nil
		}
	}
	return nil, false
}

// Candidates returns the present candidates in slot order.
func (e Evolution) Candidates() []Candidate {
	out := make([]Candidate, 0, len(e.Slots))
	for _, slot := range e.Slots {
		if slot.Candidate != nil {
			out = append(out, *slot.Candidate)
		}
	}
	return out
}

// Verdict is the critic's outcome for one candidate.
type Verdict struct {
	SegmentIndex int    `json:"segment_index"`
	Policy       Policy `json:"policy"`
	Accepted     bool   `json:"accepted"`
}

// VerdictFor builds the verdict record that traces back to c.
func VerdictFor(c Candidate, accepted bool) Verdict {
	return Verdict{SegmentIndex: c.SegmentIndex, Policy: c.Policy, Accepted: accepted}
}

func countWords(s string) int { return len(strings.Fields(s)) }
