package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/colloquyhq/colloquy/internal/api"
	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// emit sends an event when an emitter is configured.
func (b *Builder) emit(e Event) {
	if b.Events != nil {
		b.Events.Emit(e)
	}
}

// gen returns the non-streaming generator.
func (b *Builder) generator() api.Generator {
	return b.Gen
}

// stream runs a streaming generation for output destined for live
// display, forwarding deltas as events. Falls back to the non-streaming
// generator when none is configured.
func (b *Builder) stream(ctx context.Context, expert, system, user string) (string, error) {
	g := b.StreamGen
	if g == nil {
		g = b.Gen
	}
	var onDelta func(string)
	if b.Events != nil {
		onDelta = func(delta string) {
			b.Events.Emit(Event{Type: EventStreamDelta, Expert: expert, Message: delta})
		}
	}
	return g.GenerateStreaming(ctx, system, user, onDelta)
}

// historianNode loads prior conversation context into the fresh episode
// state. Output feeds further processing, so it never streams.
func (b *Builder) historianNode(ctx context.Context, s *session.State) error {
	if b.History == nil {
		return nil
	}
	history, err := b.History.RecentHistory(ctx)
	if err != nil {
		// Missing history degrades the context, not the episode.
		debugLog("[historian] history load failed: %v", err)
		return nil
	}
	s.SetHistory(history)
	return nil
}

// moderatorNode decides which experts are needed and what guidance each
// gets. It is also the hub every finished expert routes back through;
// on revisits it only advances the cycle counter.
func (b *Builder) moderatorNode(roster []models.Expert) func(ctx context.Context, s *session.State) error {
	return func(ctx context.Context, s *session.State) error {
		iteration := s.NextIteration()
		if iteration > 1 {
			// Revisit: the panel was already chosen.
			return nil
		}

		var decision struct {
			Experts []struct {
				ID       string `json:"id"`
				Guidance string `json:"guidance"`
			} `json:"experts"`
		}
		prompt := moderatorPrompt(s.Question(), s.History(), roster)
		if err := api.GenerateJSON(ctx, b.generator(), moderatorSystem, prompt, &decision); err != nil {
			return fmt.Errorf("moderator decision: %w", err)
		}

		known := make(map[string]bool, len(roster))
		for _, e := range roster {
			known[e.ID] = true
		}

		picked := make(map[string]bool)
		guidance := make(map[string]string)
		for _, pick := range decision.Experts {
			if !known[pick.ID] || picked[pick.ID] {
				continue
			}
			picked[pick.ID] = true
			guidance[pick.ID] = pick.Guidance
		}
		// Roster order keeps the visitation deterministic regardless of
		// model ordering.
		var ordered []string
		for _, e := range roster {
			if picked[e.ID] {
				ordered = append(ordered, e.ID)
			}
		}

		s.SetSelected(ordered)
		s.SetGuidance(guidance)
		b.emit(Event{
			Type:      EventModeratorDecided,
			Message:   strings.Join(ordered, ", "),
			Iteration: iteration,
		})
		debugLog("[moderator] selected experts: %v", ordered)
		return nil
	}
}

// requesterNode composes the librarian query for an expert. On the
// first pass the query comes from the question and guidance; during a
// collaboration turn from the requested focus areas; on the revision
// pass from the expert's own critique.
func (b *Builder) requesterNode(e models.Expert) func(ctx context.Context, s *session.State) error {
	return func(ctx context.Context, s *session.State) error {
		var request string
		switch {
		case s.CollabLoop() && s.ActiveCollaborator() == e.ID:
			request = fmt.Sprintf("%s (context: %s)", s.CollabAreas(), s.Question())
		case !s.Reflected(e.ID):
			request = s.Question()
			if g := s.Guidance(e.ID); g != "" {
				request += " — " + g
			}
			if len(e.Focus) > 0 {
				request += " (focus: " + strings.Join(e.Focus, ", ") + ")"
			}
		default:
			request = fmt.Sprintf("%s (follow-up on: %s)", s.Work(e.ID).Reflection, s.Question())
		}

		s.SetRequest(e.ID, request)
		s.SetLastActor(e.ID)
		debugLog("[%s_requester] request: %s", e.ID, clip(request, 120))
		return nil
	}
}

// librarianNode serves the pending retrieval request. One shared node
// serves every expert; the return address is runtime-determined by
// RouteLibrarian.
func (b *Builder) librarianNode(ctx context.Context, s *session.State) error {
	id := s.LastActor()
	if s.CollabLoop() {
		if collab := s.ActiveCollaborator(); collab != "" {
			id = collab
		}
	}
	if id == "" {
		return fmt.Errorf("librarian invoked with no pending requester")
	}

	request := s.Work(id).Request
	summary, docs, err := b.Librarian.Retrieve(ctx, id, request)
	if err != nil {
		return fmt.Errorf("librarian retrieval for %s: %w", id, err)
	}

	s.SetDocumentSummary(id, summary)
	s.AppendDocuments(docs)
	b.emit(Event{
		Type:      EventLibrarianFetched,
		Expert:    id,
		Message:   fmt.Sprintf("%d documents", len(docs)),
		Iteration: s.Iteration(),
	})
	return nil
}

// synthesisNode combines every final analysis into the user-facing
// answer and terminates the episode.
func (b *Builder) synthesisNode(ctx context.Context, s *session.State) error {
	answer, err := b.stream(ctx, NodeSynthesis, synthesisSystem, synthesisPrompt(s))
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	s.SetFinalAnswer(answer)
	s.AppendConversation(NodeSynthesis, answer)
	b.emit(Event{Type: EventSynthesisCompleted, Iteration: s.Iteration()})
	return nil
}
