// Package prompt holds the swappable prompt templates of the pipeline stages.
//
// Templates use text/template syntax. Each stage renders its template with a
// fixed data struct: SynthesisData for baseline questions, EvolutionData for
// evolution policies and JudgmentData for the critic. Rendering fails when a
// template references a field the data struct does not have, so a bad
// template is rejected at load time instead of producing a silently empty
// prompt on every call.
package prompt

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrInvalidTemplate indicates a template that does not parse or does not
// render against its data struct.
var ErrInvalidTemplate = errors.New("invalid prompt template")

// SynthesisData is rendered into the baseline question template.
type SynthesisData struct {
	Segment string
}

// EvolutionData is rendered into an evolution policy template.
type EvolutionData struct {
	Question string
}

// JudgmentData is rendered into the critic template.
type JudgmentData struct {
	Baseline  string
	Candidate string
}

// Template is a parsed prompt template.
type Template struct {
	name   string
	source string
	hash   string
	tmpl   *template.Template
}

// Parse compiles source and checks that it renders against sample.
// sample must be a value of the data struct the template will receive.
func Parse(name, source string, sample any) (*Template, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: %s: empty template", ErrInvalidTemplate, name)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, name, err)
	}

	sum := sha256.Sum256([]byte(source))
	t := &Template{name: name, source: source, hash: hex.EncodeToString(sum[:]), tmpl: tmpl}
	if _, err := t.Render(sample); err != nil {
		return nil, err
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Used for built-in templates.
func MustParse(name, source string, sample any) *Template {
	t, err := Parse(name, source, sample)
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes the template with data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, t.name, err)
	}
	return buf.String(), nil
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Source returns the unparsed template text.
func (t *Template) Source() string { return t.source }

// Hash returns the SHA-256 of the template source.
func (t *Template) Hash() string { return t.hash }
