package panel

import (
	"strings"

	"github.com/colloquyhq/colloquy/internal/session"
)

// System node names. Per-expert nodes use the expert ID plus the
// suffixes below.
const (
	NodeHistorian = "historian"
	NodeModerator = "moderator"
	NodeLibrarian = "librarian"
	NodeSynthesis = "synthesis"
)

const (
	requesterSuffix    = "_requester"
	collaboratorSuffix = "_collaborator"
)

// RequesterNode returns the requester node name for an expert.
func RequesterNode(id string) string {
	return id + requesterSuffix
}

// CollaboratorNode returns the collaborator node name for an expert.
func CollaboratorNode(id string) string {
	return id + collaboratorSuffix
}

// expertFromNode strips a node-name suffix, returning the owning expert
// ID and the kind of node ("expert", "requester", "collaborator").
func expertFromNode(node string) (id, kind string) {
	switch {
	case strings.HasSuffix(node, requesterSuffix):
		return strings.TrimSuffix(node, requesterSuffix), "requester"
	case strings.HasSuffix(node, collaboratorSuffix):
		return strings.TrimSuffix(node, collaboratorSuffix), "collaborator"
	default:
		return node, "expert"
	}
}

// The routers below are pure functions of the episode state: they never
// mutate, and the same state always yields the same decision. Mutation
// happens only inside node bodies.

// RouteModerator decides the moderator's outgoing edge: the requester
// of the first remaining selected expert, or synthesis once the
// selected set is empty.
func RouteModerator(s *session.State) string {
	if next := s.NextSelected(); next != "" {
		return RequesterNode(next)
	}
	return NodeSynthesis
}

// RouteExpert decides an expert's outgoing edge. While a collaboration
// loop is active the collaborator on deck runs next; an expert that has
// not yet reflected goes back to its requester for more documents;
// otherwise its episode is finished and control returns to the
// moderator hub.
func RouteExpert(id string) func(s *session.State) string {
	return func(s *session.State) string {
		if s.CollabLoop() {
			if collab := s.ActiveCollaborator(); collab != "" {
				return CollaboratorNode(collab)
			}
		}
		if !s.Reflected(id) {
			return RequesterNode(id)
		}
		return NodeModerator
	}
}

// RouteCollaborator decides a collaborator's outgoing edge: the next
// queued collaborator's requester while more remain, else back to the
// moderator hub so the helped expert can be revisited for revision.
func RouteCollaborator(s *session.State) string {
	if s.MoreCollab() {
		if next := s.ActiveCollaborator(); next != "" {
			return RequesterNode(next)
		}
	}
	return NodeModerator
}

// RouteLibrarian decides the shared librarian's outgoing edge. The
// librarian serves every expert, so its single edge is steered back to
// whichever expert or collaborator issued the pending request: the
// collaborator on deck during a collaboration loop, otherwise the last
// actor. With neither set the moderator hub is the explicit default.
func RouteLibrarian(s *session.State) string {
	if s.CollabLoop() {
		if collab := s.ActiveCollaborator(); collab != "" {
			return CollaboratorNode(collab)
		}
	}
	if actor := s.LastActor(); actor != "" {
		return actor
	}
	return NodeModerator
}
