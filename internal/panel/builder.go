package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colloquyhq/colloquy/internal/api"
	"github.com/colloquyhq/colloquy/internal/graph"
	"github.com/colloquyhq/colloquy/internal/librarian"
	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// HistoryProvider supplies prior-conversation context to the historian
// step. The persistence layer implements it; episodes run fine without
// one.
type HistoryProvider interface {
	RecentHistory(ctx context.Context) (string, error)
}

// Builder assembles an executable episode graph from a team roster.
// Gen, Librarian, and Decider are required; everything else is optional.
type Builder struct {
	// Registry resolves roster entries to expert definitions.
	Registry *Registry
	// Gen handles non-streaming generation.
	Gen api.Generator
	// StreamGen handles generation whose output should stream to the
	// user. Falls back to Gen when nil.
	StreamGen api.Generator
	// Librarian serves document retrieval requests.
	Librarian librarian.Librarian
	// Decider picks collaborators from an expert's self-critique.
	Decider CollabDecider
	// Events receives progress events, if set.
	Events *EventEmitter
	// History supplies prior-conversation context, if set.
	History HistoryProvider
	// NodeTimeout bounds each node execution. Zero disables the bound.
	NodeTimeout time.Duration
	// MaxSteps overrides the run step budget when positive.
	MaxSteps int
}

// Build resolves the team against the registry and wires the episode
// graph: the four system nodes plus requester, analysis, and
// collaborator nodes for every rostered expert. Rosters that reference
// unregistered experts fail with UnresolvedExpertError.
func (b *Builder) Build(team models.Team) (*graph.Runnable[*session.State], error) {
	switch {
	case b.Registry == nil:
		return nil, fmt.Errorf("build panel: registry is required")
	case b.Gen == nil:
		return nil, fmt.Errorf("build panel: generator is required")
	case b.Librarian == nil:
		return nil, fmt.Errorf("build panel: librarian is required")
	case b.Decider == nil:
		return nil, fmt.Errorf("build panel: collaboration decider is required")
	}

	roster, err := b.Registry.Resolve(team.Slots)
	if err != nil {
		return nil, fmt.Errorf("build panel for team %q: %w", team.Name, err)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("build panel for team %q: no experts rostered", team.Name)
	}

	g := graph.New[*session.State]()

	g.AddNode(NodeHistorian, b.historianNode).
		AddNode(NodeModerator, b.moderatorNode(roster)).
		AddNode(NodeLibrarian, b.librarianNode).
		AddNode(NodeSynthesis, b.synthesisNode)

	var requesters, analysts, collaborators []string
	for _, e := range roster {
		requesters = append(requesters, RequesterNode(e.ID))
		analysts = append(analysts, e.ID)
		collaborators = append(collaborators, CollaboratorNode(e.ID))

		g.AddNode(RequesterNode(e.ID), b.requesterNode(e)).
			AddNode(e.ID, b.expertNode(e, roster)).
			AddNode(CollaboratorNode(e.ID), b.collaboratorNode(e))
	}

	g.SetEntry(NodeHistorian).
		AddEdge(NodeHistorian, NodeModerator).
		AddEdge(NodeSynthesis, graph.End)

	g.AddConditionalEdges(NodeModerator, RouteModerator,
		append(append([]string(nil), requesters...), NodeSynthesis))

	librarianTargets := append(append(append([]string(nil), analysts...), collaborators...), NodeModerator)
	g.AddConditionalEdges(NodeLibrarian, RouteLibrarian, librarianTargets)

	for _, e := range roster {
		g.AddEdge(RequesterNode(e.ID), NodeLibrarian)

		expertTargets := []string{RequesterNode(e.ID), NodeModerator}
		for _, other := range roster {
			if other.ID != e.ID {
				expertTargets = append(expertTargets, CollaboratorNode(other.ID))
			}
		}
		g.AddConditionalEdges(e.ID, RouteExpert(e.ID), expertTargets)

		g.AddConditionalEdges(CollaboratorNode(e.ID), RouteCollaborator,
			append(append([]string(nil), requesters...), NodeModerator))
	}

	opts := []graph.Option[*session.State]{
		graph.WithErrorHandler(b.degrade(roster)),
	}
	if b.NodeTimeout > 0 {
		opts = append(opts, graph.WithNodeTimeout[*session.State](b.NodeTimeout))
	}
	if b.MaxSteps > 0 {
		opts = append(opts, graph.WithMaxSteps[*session.State](b.MaxSteps))
	}

	return g.Compile(opts...)
}

// degrade is the node failure handler. One misbehaving node costs the
// panel that expert's contribution, not the whole episode: the failed
// expert gets a placeholder final analysis and is retired, a failed
// collaborator is skipped, and a failed moderator or synthesis falls
// back to an empty panel or a stock apology. Only caller cancellation
// aborts the run.
func (b *Builder) degrade(roster []models.Expert) graph.ErrorHandler[*session.State] {
	inRoster := make(map[string]bool, len(roster))
	for _, e := range roster {
		inRoster[e.ID] = true
	}

	return func(node string, s *session.State, err error) error {
		if errors.Is(err, context.Canceled) {
			return err
		}

		debugLog("[degrade] node %s failed: %v", node, err)

		id, kind := expertFromNode(node)
		if inRoster[id] {
			switch kind {
			case "collaborator":
				// Skip this collaborator; the helped expert revises
				// with whatever reports arrived.
				s.AdvanceCollaborator()
			default:
				b.retireExpert(s, id, err)
			}
			b.emit(Event{Type: EventExpertFailed, Expert: id, Err: err, Iteration: s.Iteration()})
			return nil
		}

		switch node {
		case NodeModerator:
			s.SetSelected(nil)
		case NodeLibrarian:
			// The pending requester proceeds without documents.
			if actor := s.LastActor(); actor != "" {
				s.SetDocumentSummary(actor, "No documents were available for this request.")
			}
			if s.CollabLoop() {
				if collab := s.ActiveCollaborator(); collab != "" {
					s.SetDocumentSummary(collab, "No documents were available for this request.")
				}
			}
		case NodeSynthesis:
			s.SetFinalAnswer(degradedAnswer(s))
		}
		return nil
	}
}

// retireExpert closes out an expert whose cycle failed mid-flight.
// Marking it reflected keeps the expert router from sending it back
// through its requester after the failure.
func (b *Builder) retireExpert(s *session.State, id string, err error) {
	if !s.Reflected(id) {
		s.SetReflection(id, "")
	}
	if s.Work(id).FinalAnalysis == "" {
		analysis := s.Work(id).Analysis
		if analysis == "" {
			analysis = fmt.Sprintf("(%s could not produce an analysis: %v)", id, err)
		}
		s.SetFinalAnalysis(id, analysis)
	}
	s.CompleteExpert(id)
}

// degradedAnswer is the synthesis fallback: the raw analyses, joined.
func degradedAnswer(s *session.State) string {
	analyses := s.FinalAnalyses()
	if len(analyses) == 0 {
		return "The panel could not produce an answer."
	}
	out := "The panel could not synthesize a combined answer. Individual analyses follow.\n"
	for _, id := range sortedKeys(analyses) {
		out += fmt.Sprintf("\n=== %s ===\n%s\n", id, analyses[id])
	}
	return out
}
