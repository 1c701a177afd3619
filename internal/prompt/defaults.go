package prompt

// Built-in template sources.
const (
	DefaultSynthesis = `Read the following passage and write one question that can be answered using only the information in it.
Respond with the question only.

Passage:
{{.Segment}}`

	DefaultComplexity = `Rewrite the question below so that answering it requires multi-step reasoning over the same information.
Respond with the rewritten question only.

Question: {{.Question}}`

	DefaultCompression = `Rewrite the question below as concisely as possible without changing what it asks.
Respond with the rewritten question only.

Question: {{.Question}}`

	DefaultRephrase = `Rephrase the question below using different wording while asking for exactly the same information.
Respond with the rephrased question only.

Question: {{.Question}}`

	DefaultCritic = `You are reviewing an evolved question against its original.
Answer VALID if both conditions hold:
1. The evolved question is worded noticeably differently from the original.
2. The evolved question asks for the same information as the original.
Otherwise answer INVALID.
Respond with exactly one word: VALID or INVALID.

Original: {{.Baseline}}
Evolved: {{.Candidate}}`
)

// Synthesis returns the built-in baseline question template.
func Synthesis() *Template { return MustParse("synthesis", DefaultSynthesis, SynthesisData{}) }

// Critic returns the built-in judgment template.
func Critic() *Template { return MustParse("critic", DefaultCritic, JudgmentData{}) }
