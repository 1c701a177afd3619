package domain

// Activity contracts exchanged between EvolutionWorkflow and its activities.
// Optional results are wrapped in structs so that absence survives the
// Temporal payload round trip as a nil pointer instead of an error.

// ChunkDocumentInput is the input of the ChunkDocument activity.
type ChunkDocumentInput struct {
	Document  string `json:"document"`
	ChunkSize int    `json:"chunk_size" validate:"min=1"`
}

// Validate checks the chunk size.
func (i ChunkDocumentInput) Validate() error {
	return RunRequest(i).Validate()
}

// ChunkDocumentOutput lists the segments in document order.
type ChunkDocumentOutput struct {
	Segments []Segment `json:"segments"`
}

// SynthesizeQuestionInput is the input of the SynthesizeQuestion activity.
type SynthesizeQuestionInput struct {
	Segment Segment `json:"segment"`
}

// Validate checks the segment.
func (i SynthesizeQuestionInput) Validate() error { return validate.Struct(i) }

// SynthesizeQuestionOutput carries the baseline question, nil when
// generation failed.
type SynthesizeQuestionOutput struct {
	Baseline *BaselineQuestion `json:"baseline,omitempty"`
}

// EvolveQuestionInput is the input of the EvolveQuestion activity.
type EvolveQuestionInput struct {
	Baseline BaselineQuestion `json:"baseline"`
}

// Validate checks the baseline question.
func (i EvolveQuestionInput) Validate() error { return validate.Struct(i) }

// EvolveQuestionOutput carries one slot per configured policy.
type EvolveQuestionOutput struct {
	Evolution Evolution `json:"evolution"`
}

// JudgeCandidateInput is the input of the JudgeCandidate activity.
type JudgeCandidateInput struct {
	Baseline  BaselineQuestion `json:"baseline"`
	Candidate Candidate        `json:"candidate"`
}

// Validate checks both questions.
func (i JudgeCandidateInput) Validate() error { return validate.Struct(i) }

// JudgeCandidateOutput carries the verdict. Judgment failures are
// rejections, so a verdict is always present.
type JudgeCandidateOutput struct {
	Verdict Verdict `json:"verdict"`
}
