package evolution

import (
	"fmt"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// PolicyDef is the serializable form of a policy table entry.
type PolicyDef struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Template string `json:"template" yaml:"template" validate:"required"`
}

// PolicyEntry binds a policy to its parsed prompt template.
type PolicyEntry struct {
	Policy   domain.Policy
	Template *prompt.Template
}

// PolicyTable is the ordered policy → template mapping applied to every
// baseline question. Table order fixes invocation and output order.
type PolicyTable struct {
	entries []PolicyEntry
}

// NewPolicyTable validates entries and returns a table.
// The table must be non-empty, with unique non-blank policy names and a
// template per entry; otherwise domain.ErrInvalidPolicyTable is returned.
func NewPolicyTable(entries ...PolicyEntry) (*PolicyTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no policies", domain.ErrInvalidPolicyTable)
	}

	seen := make(map[domain.Policy]struct{}, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(string(e.Policy)) == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", domain.ErrInvalidPolicyTable, i)
		}
		if e.Template == nil {
			return nil, fmt.Errorf("%w: policy %q has no template", domain.ErrInvalidPolicyTable, e.Policy)
		}
		if _, dup := seen[e.Policy]; dup {
			return nil, fmt.Errorf("%w: duplicate policy %q", domain.ErrInvalidPolicyTable, e.Policy)
		}
		seen[e.Policy] = struct{}{}
	}

	return &PolicyTable{entries: append([]PolicyEntry(nil), entries...)}, nil
}

// ParsePolicyTable parses every definition's template and builds a table.
func ParsePolicyTable(defs []PolicyDef) (*PolicyTable, error) {
	entries := make([]PolicyEntry, 0, len(defs))
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		tmpl, err := prompt.Parse(name, d.Template, prompt.EvolutionData{})
		if err != nil {
			return nil, fmt.Errorf("%w: policy %q: %w", domain.ErrInvalidPolicyTable, name, err)
		}
		entries = append(entries, PolicyEntry{Policy: domain.Policy(name), Template: tmpl})
	}
	return NewPolicyTable(entries...)
}

// DefaultPolicyDefs returns the built-in definitions: complexity,
// compression and rephrase.
func DefaultPolicyDefs() []PolicyDef {
	return []PolicyDef{
		{Name: string(domain.PolicyComplexity), Template: prompt.DefaultComplexity},
		{Name: string(domain.PolicyCompression), Template: prompt.DefaultCompression},
		{Name: string(domain.PolicyRephrase), Template: prompt.DefaultRephrase},
	}
}

// DefaultPolicyTable returns the built-in table.
func DefaultPolicyTable() *PolicyTable {
	t, err := ParsePolicyTable(DefaultPolicyDefs())
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of policies.
func (t *PolicyTable) Len() int { return len(t.entries) }

// Entries returns a copy of the entries in table order.
func (t *PolicyTable) Entries() []PolicyEntry {
	return append([]PolicyEntry(nil), t.entries...)
}

// Policies returns the policy names in table order.
func (t *PolicyTable) Policies() []domain.Policy {
	out := make([]domain.Policy, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Policy
	}
	return out
}

// Lookup returns the entry for policy.
func (t *PolicyTable) Lookup(policy domain.Policy) (PolicyEntry, bool) {
	for _, e := range t.entries {
		if e.Policy == policy {
			return e, true
		}
	}
	return PolicyEntry{}, false
}
