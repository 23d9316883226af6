package panel

import (
	"context"
	"strings"

	"github.com/colloquyhq/colloquy/internal/api"
)

// CollabDecider decides which other experts should collaborate on an
// analysis, given the author's self-critique. Implementations must
// return a subset of candidates and never the calling expert itself;
// callers filter defensively regardless.
type CollabDecider interface {
	DetermineCollaboration(ctx context.Context, reflection, analysis string, candidates []string) ([]string, error)
}

const collabDecisionSystem = `An expert critiqued their own analysis. Decide which of the
candidate experts, if any, should contribute domain input before the revision.
Select a candidate only when the critique identifies a gap that expert's domain
directly covers. Selecting no one is a fine outcome.

Respond with JSON only: {"collaborators": ["<id>", ...]}`

// LLMCollabDecider asks the model which collaborators an expert needs.
type LLMCollabDecider struct {
	gen api.Generator
}

// NewLLMCollabDecider creates a decider over a generator.
func NewLLMCollabDecider(gen api.Generator) *LLMCollabDecider {
	return &LLMCollabDecider{gen: gen}
}

// DetermineCollaboration returns the selected collaborator IDs, always
// a subset of candidates in candidate order.
func (d *LLMCollabDecider) DetermineCollaboration(ctx context.Context, reflection, analysis string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Candidates:\n")
	for _, id := range candidates {
		b.WriteString("- " + id + "\n")
	}
	b.WriteString("\nAnalysis:\n" + analysis + "\n\nCritique:\n" + reflection + "\n")

	var decision struct {
		Collaborators []string `json:"collaborators"`
	}
	if err := api.GenerateJSON(ctx, d.gen, collabDecisionSystem, b.String(), &decision); err != nil {
		return nil, err
	}
	return filterToCandidates(decision.Collaborators, candidates), nil
}

// filterToCandidates keeps selected IDs that appear in candidates,
// deduplicated, in candidate order.
func filterToCandidates(selected, candidates []string) []string {
	chosen := make(map[string]bool, len(selected))
	for _, id := range selected {
		chosen[id] = true
	}
	var out []string
	for _, id := range candidates {
		if chosen[id] {
			out = append(out, id)
		}
	}
	return out
}
