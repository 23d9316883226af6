package panel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/pkg/models"
)

const moderatorSystem = `You are the moderator of a panel of subject-matter experts.
Given a question and the roster below, decide which experts are needed and give
each one short, specific guidance on what to focus on. Select only experts whose
perspective materially helps; do not select the whole roster by default.

Respond with JSON only:
{"experts": [{"id": "<expert id>", "guidance": "<one or two sentences>"}]}`

// critiqueSystem is the fixed, domain-general rubric every expert uses
// to critique its own draft.
const critiqueSystem = `You are a rigorous reviewer. Critique the analysis below.
Focus on: mischaracterizations of the evidence, suspected factual inaccuracies,
and unsupported leaps. Finish with a succinct numbered list of corrections.
Do not rewrite the analysis.`

const collabAreasSystem = `You requested help from fellow panel experts. Describe, in a
short paragraph, what the collaborators should focus on when augmenting your
analysis. Be concrete about the gaps your self-critique identified.`

const collabReportSystem = `You are contributing to another expert's analysis, not writing
your own. Read their draft and the requested focus areas, then provide a focused
report adding what your domain expertise contributes. Address the target expert
directly and keep to the requested areas.`

const synthesisSystem = `You are the synthesis step of an expert panel. Combine the final
analyses below into a single coherent answer to the user's question. Preserve
disagreements between experts instead of papering over them, and attribute
notable judgments to the expert who made them.`

func moderatorPrompt(question, history string, roster []models.Expert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nRoster:\n", question)
	for _, e := range roster {
		fmt.Fprintf(&b, "- %s: %s\n", e.ID, e.Role)
	}
	if history != "" {
		fmt.Fprintf(&b, "\nRecent conversation history:\n%s\n", history)
	}
	return b.String()
}

func draftPrompt(s *session.State, e models.Expert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", s.Question())
	if g := s.Guidance(e.ID); g != "" {
		fmt.Fprintf(&b, "\nModerator guidance: %s\n", g)
	}
	w := s.Work(e.ID)
	if w.DocumentSummary != "" {
		fmt.Fprintf(&b, "\nDocument summary:\n%s\n", w.DocumentSummary)
	}
	if docs := s.Documents(); len(docs) > 0 {
		b.WriteString("\nSource documents:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", d.Source, clip(d.PageContent, 2000))
		}
	}
	b.WriteString("\nWrite your analysis from your role's perspective.")
	return b.String()
}

func revisionPrompt(s *session.State, e models.Expert) string {
	w := s.Work(e.ID)
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nYour draft analysis:\n%s\n\nYour self-critique:\n%s\n",
		s.Question(), w.Analysis, w.Reflection)
	if w.DocumentSummary != "" {
		fmt.Fprintf(&b, "\nAdditional document summary:\n%s\n", w.DocumentSummary)
	}
	for _, r := range s.CollabReportsFor(e.ID) {
		fmt.Fprintf(&b, "\nContribution from %s:\n%s\n", r.Author, r.Report)
	}
	b.WriteString("\nProduce your final analysis, addressing the critique and folding in the contributions.")
	return b.String()
}

func collabReportPrompt(s *session.State, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nTarget expert: %s\n\nTheir draft analysis:\n%s\n\nRequested focus areas:\n%s\n",
		s.Question(), target, s.Work(target).Analysis, s.CollabAreas())
	return b.String()
}

func synthesisPrompt(s *session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", s.Question())
	analyses := s.FinalAnalyses()
	if len(analyses) == 0 {
		b.WriteString("\nNo expert analyses were produced. Say so and answer as best you can.\n")
		return b.String()
	}
	for _, id := range sortedKeys(analyses) {
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n", id, analyses[id])
	}
	return b.String()
}

func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
