package panel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// fakeGen scripts generation by system prompt. Expert personas are
// recognized by their "You are <name>" preamble; test experts use
// their ID as their name so responses can be tagged per expert.
type fakeGen struct {
	mu       sync.Mutex
	selected string // moderator JSON response
	failFor  map[string]bool
	calls    []string
}

func (g *fakeGen) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch system {
	case moderatorSystem:
		g.calls = append(g.calls, "moderator")
		return g.selected, nil
	case critiqueSystem:
		g.calls = append(g.calls, "critique")
		return "needs statutory grounding", nil
	case collabAreasSystem:
		g.calls = append(g.calls, "areas")
		return "statutory constraints on the proposal", nil
	case collabReportSystem:
		g.calls = append(g.calls, "report")
		return "report:" + personaID(user), nil
	case synthesisSystem:
		g.calls = append(g.calls, "synthesis")
		return "combined answer", nil
	}

	id := personaID(system)
	if g.failFor[id] {
		return "", fmt.Errorf("model unavailable")
	}
	if strings.Contains(user, "Your self-critique") {
		g.calls = append(g.calls, "revise:"+id)
		return "revised:" + id, nil
	}
	g.calls = append(g.calls, "draft:"+id)
	return "draft:" + id, nil
}

func (g *fakeGen) GenerateStreaming(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	out, err := g.Generate(ctx, system, user)
	if err == nil && onDelta != nil {
		onDelta(out)
	}
	return out, err
}

// personaID extracts the expert ID from an expertSystem prompt. The
// collaborator report prompt carries the target in its user text.
func personaID(text string) string {
	if i := strings.Index(text, "You are "); i >= 0 {
		rest := text[i+len("You are "):]
		if j := strings.IndexAny(rest, ",\n"); j >= 0 {
			return rest[:j]
		}
	}
	if i := strings.Index(text, "Target expert: "); i >= 0 {
		rest := text[i+len("Target expert: "):]
		if j := strings.Index(rest, "\n"); j >= 0 {
			return rest[:j]
		}
	}
	return text
}

// fakeLibrarian returns a canned summary tagged with the requester.
type fakeLibrarian struct {
	mu       sync.Mutex
	requests []string
}

func (l *fakeLibrarian) Retrieve(ctx context.Context, requesterID, request string) (string, []models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, requesterID)
	return "summary for " + requesterID, []models.Document{
		{Source: "corpus/" + requesterID, PageContent: "evidence"},
	}, nil
}

// fakeDecider picks collaborators keyed by the drafting expert's
// analysis tag.
type fakeDecider struct {
	picks map[string][]string
}

func (d *fakeDecider) DetermineCollaboration(ctx context.Context, reflection, analysis string, candidates []string) ([]string, error) {
	return d.picks[analysis], nil
}

func testRoster(ids ...string) (*Registry, models.Team) {
	r := NewRegistry()
	for _, id := range ids {
		r.Register(models.Expert{ID: id, Name: id, Role: id + " specialist"})
	}
	return r, models.Team{Name: "test-team", Slots: ids}
}

func newTestBuilder(reg *Registry, gen *fakeGen, dec *fakeDecider) *Builder {
	return &Builder{
		Registry:  reg,
		Gen:       gen,
		Librarian: &fakeLibrarian{},
		Decider:   dec,
	}
}

func TestEpisodeSoloExpertCompletesOnDraft(t *testing.T) {
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [{"id": "econ", "guidance": "focus on costs"}]}`}
	b := newTestBuilder(reg, gen, &fakeDecider{})

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := session.New("ep", "what does the tariff cost?")
	trace, err := runnable.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		NodeHistorian, NodeModerator,
		RequesterNode("econ"), NodeLibrarian, "econ",
		NodeModerator, NodeSynthesis,
	}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}

	if got := s.FinalAnalyses()["econ"]; got != "draft:econ" {
		t.Fatalf("no-collaborator expert should finalize on its draft, got %q", got)
	}
	if s.FinalAnswer() != "combined answer" {
		t.Fatalf("unexpected final answer %q", s.FinalAnswer())
	}
	if s.Work("econ").DocumentSummary != "summary for econ" {
		t.Fatal("librarian summary not recorded for the requesting expert")
	}
}

func TestEpisodeCollaborationAndRevision(t *testing.T) {
	reg, team := testRoster("econ", "law")
	gen := &fakeGen{selected: `{"experts": [
		{"id": "econ", "guidance": "costs"},
		{"id": "law", "guidance": "statutes"}
	]}`}
	dec := &fakeDecider{picks: map[string][]string{"draft:econ": {"law"}}}
	b := newTestBuilder(reg, gen, dec)

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := session.New("ep", "is the tariff lawful and affordable?")
	trace, err := runnable.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		NodeHistorian, NodeModerator,
		// econ drafts, requests law's help; law contributes directly.
		RequesterNode("econ"), NodeLibrarian, "econ", CollaboratorNode("law"),
		// econ revises with the contribution folded in.
		NodeModerator, RequesterNode("econ"), NodeLibrarian, "econ",
		// law runs its own cycle, no collaborators.
		NodeModerator, RequesterNode("law"), NodeLibrarian, "law",
		NodeModerator, NodeSynthesis,
	}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}

	analyses := s.FinalAnalyses()
	if analyses["econ"] != "revised:econ" {
		t.Fatalf("collab target should finalize on its revision, got %q", analyses["econ"])
	}
	if analyses["law"] != "draft:law" {
		t.Fatalf("solo expert should finalize on its draft, got %q", analyses["law"])
	}

	// The collab scratch state must be fully cleared.
	if s.CollabLoop() || s.ActiveCollaborator() != "" || len(s.CollabQueue()) != 0 {
		t.Fatal("collaboration state leaked past expert completion")
	}
	if reports := s.CollabReportsFor("econ"); len(reports) != 0 {
		t.Fatalf("econ's reports should be cleared on completion, got %v", reports)
	}
}

func TestEpisodeDrainsMultiCollaboratorQueue(t *testing.T) {
	reg, team := testRoster("econ", "law", "med")
	gen := &fakeGen{selected: `{"experts": [
		{"id": "econ", "guidance": "costs"},
		{"id": "law", "guidance": "statutes"},
		{"id": "med", "guidance": "health"}
	]}`}
	dec := &fakeDecider{picks: map[string][]string{"draft:econ": {"law", "med"}}}
	b := newTestBuilder(reg, gen, dec)

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := session.New("ep", "is the tariff lawful, affordable, and safe?")
	trace, err := runnable.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		NodeHistorian, NodeModerator,
		// econ drafts and queues two collaborators: law is entered
		// directly, med arrives via its requester and the librarian.
		RequesterNode("econ"), NodeLibrarian, "econ",
		CollaboratorNode("law"),
		RequesterNode("med"), NodeLibrarian, CollaboratorNode("med"),
		// econ revises with both contributions folded in.
		NodeModerator, RequesterNode("econ"), NodeLibrarian, "econ",
		// law and med run their own cycles, no collaborators.
		NodeModerator, RequesterNode("law"), NodeLibrarian, "law",
		NodeModerator, RequesterNode("med"), NodeLibrarian, "med",
		NodeModerator, NodeSynthesis,
	}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}

	analyses := s.FinalAnalyses()
	if analyses["econ"] != "revised:econ" {
		t.Fatalf("collab target should finalize on its revision, got %q", analyses["econ"])
	}
	if analyses["law"] != "draft:law" || analyses["med"] != "draft:med" {
		t.Fatalf("collaborators should still run their own solo cycles, got %v", analyses)
	}

	reports := 0
	for _, c := range gen.calls {
		if c == "report" {
			reports++
		}
	}
	if reports != 2 {
		t.Fatalf("each queued collaborator should report exactly once, got %d reports", reports)
	}

	if s.CollabLoop() || s.ActiveCollaborator() != "" || len(s.CollabQueue()) != 0 {
		t.Fatal("collaboration state leaked past expert completion")
	}
	if got := s.CollabReportsFor("econ"); len(got) != 0 {
		t.Fatalf("econ's reports should be cleared on completion, got %v", got)
	}
}

func TestEpisodeDegradesFailedExpert(t *testing.T) {
	reg, team := testRoster("econ", "law")
	gen := &fakeGen{
		selected: `{"experts": [{"id": "econ", "guidance": "g"}, {"id": "law", "guidance": "g"}]}`,
		failFor:  map[string]bool{"econ": true},
	}
	b := newTestBuilder(reg, gen, &fakeDecider{})

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := session.New("ep", "q")
	if _, err := runnable.Run(context.Background(), s); err != nil {
		t.Fatalf("one failed expert should not abort the episode: %v", err)
	}

	analyses := s.FinalAnalyses()
	if !strings.Contains(analyses["econ"], "could not produce an analysis") {
		t.Fatalf("failed expert should get a placeholder analysis, got %q", analyses["econ"])
	}
	if analyses["law"] != "draft:law" {
		t.Fatalf("surviving expert should still complete, got %q", analyses["law"])
	}
	if s.FinalAnswer() == "" {
		t.Fatal("episode should still synthesize an answer")
	}
}

func TestEpisodeAbortsOnCancellation(t *testing.T) {
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [{"id": "econ", "guidance": "g"}]}`}
	b := newTestBuilder(reg, gen, &fakeDecider{})

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := session.New("ep", "q")
	if _, err := runnable.Run(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestModeratorIgnoresUnknownPicks(t *testing.T) {
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [
		{"id": "ghost", "guidance": "g"},
		{"id": "econ", "guidance": "costs"},
		{"id": "econ", "guidance": "duplicate"}
	]}`}
	b := newTestBuilder(reg, gen, &fakeDecider{})

	runnable, err := b.Build(team)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := session.New("ep", "q")
	if _, err := runnable.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.Guidance("econ"); got != "costs" {
		t.Fatalf("first guidance should win, got %q", got)
	}
	if _, ok := s.FinalAnalyses()["ghost"]; ok {
		t.Fatal("unknown pick must not produce an analysis")
	}
}
