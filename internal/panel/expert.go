package panel

import (
	"context"
	"fmt"

	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// expertNode runs one expert's turn. The node is entered twice per
// expert in the common case: the first entry drafts, self-critiques,
// and decides whether collaborators are needed; the second entry (after
// a fresh retrieval driven by the critique) produces the final revised
// analysis and retires the expert. An expert that wants no
// collaborators skips the revision pass entirely and finalizes on the
// draft.
func (b *Builder) expertNode(e models.Expert, roster []models.Expert) func(ctx context.Context, s *session.State) error {
	return func(ctx context.Context, s *session.State) error {
		if s.Reflected(e.ID) {
			return b.reviseAnalysis(ctx, s, e)
		}
		return b.draftAnalysis(ctx, s, e, roster)
	}
}

func (b *Builder) draftAnalysis(ctx context.Context, s *session.State, e models.Expert, roster []models.Expert) error {
	system := expertSystem(e)

	draft, err := b.stream(ctx, e.ID, system, draftPrompt(s, e))
	if err != nil {
		return fmt.Errorf("%s draft: %w", e.ID, err)
	}
	s.SetAnalysis(e.ID, draft)
	s.AppendConversation(e.ID, draft)
	b.emit(Event{Type: EventExpertDrafted, Expert: e.ID, Iteration: s.Iteration()})

	critique, err := b.generator().Generate(ctx, critiqueSystem, draft)
	if err != nil {
		return fmt.Errorf("%s critique: %w", e.ID, err)
	}
	s.SetReflection(e.ID, critique)
	b.emit(Event{Type: EventExpertReflected, Expert: e.ID, Iteration: s.Iteration()})

	var candidates []string
	for _, other := range roster {
		if other.ID != e.ID {
			candidates = append(candidates, other.ID)
		}
	}
	collaborators, err := b.Decider.DetermineCollaboration(ctx, critique, draft, candidates)
	if err != nil {
		return fmt.Errorf("%s collaboration decision: %w", e.ID, err)
	}
	// Defensive: a decider must never pick the author or a stranger.
	collaborators = filterToCandidates(collaborators, candidates)

	if len(collaborators) == 0 {
		// Nothing to fold in; the draft stands as the final analysis.
		s.SetFinalAnalysis(e.ID, draft)
		s.CompleteExpert(e.ID)
		b.emit(Event{Type: EventExpertCompleted, Expert: e.ID, Iteration: s.Iteration()})
		debugLog("[%s] no collaborators needed, completing on draft", e.ID)
		return nil
	}

	areas, err := b.generator().Generate(ctx, collabAreasSystem,
		fmt.Sprintf("Your analysis:\n%s\n\nYour self-critique:\n%s\n", draft, critique))
	if err != nil {
		return fmt.Errorf("%s collaboration areas: %w", e.ID, err)
	}
	s.BeginCollaboration(collaborators, areas)
	b.emit(Event{
		Type:      EventCollabStarted,
		Expert:    e.ID,
		Message:   fmt.Sprintf("%d collaborators", len(collaborators)),
		Iteration: s.Iteration(),
	})
	debugLog("[%s] requested collaborators: %v", e.ID, collaborators)
	return nil
}

func (b *Builder) reviseAnalysis(ctx context.Context, s *session.State, e models.Expert) error {
	final, err := b.stream(ctx, e.ID, expertSystem(e), revisionPrompt(s, e))
	if err != nil {
		return fmt.Errorf("%s revision: %w", e.ID, err)
	}
	s.SetFinalAnalysis(e.ID, final)
	s.AppendConversation(e.ID, final)
	s.CompleteExpert(e.ID)
	b.emit(Event{Type: EventExpertCompleted, Expert: e.ID, Iteration: s.Iteration()})
	return nil
}

// collaboratorNode produces a focused contribution to the expert
// currently drafting. The first collaborator in a queue is entered
// straight from the drafting expert, so it fetches its own documents
// inline; later collaborators arrive via their requester and the shared
// librarian, which RouteLibrarian steers back here.
func (b *Builder) collaboratorNode(e models.Expert) func(ctx context.Context, s *session.State) error {
	return func(ctx context.Context, s *session.State) error {
		target := s.NextSelected()
		if target == "" {
			return fmt.Errorf("%s collaborating with no expert selected", e.ID)
		}

		if s.LastActor() != e.ID {
			// Entered directly, without a requester/librarian hop.
			request := fmt.Sprintf("%s (context: %s)", s.CollabAreas(), s.Question())
			summary, docs, err := b.Librarian.Retrieve(ctx, e.ID, request)
			if err != nil {
				return fmt.Errorf("%s collaboration retrieval: %w", e.ID, err)
			}
			s.SetRequest(e.ID, request)
			s.SetDocumentSummary(e.ID, summary)
			s.AppendDocuments(docs)
		}

		prompt := collabReportPrompt(s, target)
		if summary := s.Work(e.ID).DocumentSummary; summary != "" {
			prompt += fmt.Sprintf("\nDocument summary:\n%s\n", summary)
		}
		report, err := b.stream(ctx, e.ID, collabReportSystem, prompt)
		if err != nil {
			return fmt.Errorf("%s collaboration report: %w", e.ID, err)
		}

		s.AddCollabReport(session.CollabReport{Target: target, Author: e.ID, Report: report})
		s.AppendConversation(e.ID, report)
		s.SetLastActor(e.ID)
		s.AdvanceCollaborator()
		b.emit(Event{
			Type:      EventCollabReport,
			Expert:    e.ID,
			Target:    target,
			Iteration: s.Iteration(),
		})
		debugLog("[%s_collaborator] reported to %s", e.ID, target)
		return nil
	}
}

// expertSystem renders an expert's persona as its system prompt.
func expertSystem(e models.Expert) string {
	system := fmt.Sprintf("You are %s, %s.", e.Name, e.Role)
	if e.Instructions != "" {
		system += "\n\n" + e.Instructions
	}
	return system
}
