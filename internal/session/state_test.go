package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/colloquyhq/colloquy/pkg/models"
)

func TestSelectedShrinksMonotonically(t *testing.T) {
	s := New("ep-1", "Q")
	s.SetSelected([]string{"x", "y", "z"})

	s.CompleteExpert("y")
	got := s.Selected()
	if len(got) != 2 || got[0] != "x" || got[1] != "z" {
		t.Fatalf("expected [x z], got %v", got)
	}

	s.CompleteExpert("x")
	s.CompleteExpert("z")
	if len(s.Selected()) != 0 {
		t.Errorf("expected empty selected set, got %v", s.Selected())
	}

	// Completing an unknown expert is a no-op, never a re-add.
	s.CompleteExpert("y")
	if len(s.Selected()) != 0 {
		t.Errorf("expected selected to stay empty, got %v", s.Selected())
	}
}

func TestNextSelectedIsDeterministic(t *testing.T) {
	s := New("ep-1", "Q")
	s.SetSelected([]string{"x", "y"})

	if s.NextSelected() != "x" {
		t.Errorf("expected x first, got %q", s.NextSelected())
	}
	if s.NextSelected() != "x" {
		t.Error("NextSelected mutated state")
	}
	s.CompleteExpert("x")
	if s.NextSelected() != "y" {
		t.Errorf("expected y after x completes, got %q", s.NextSelected())
	}
	s.CompleteExpert("y")
	if s.NextSelected() != "" {
		t.Errorf("expected empty, got %q", s.NextSelected())
	}
}

func TestCollabQueueEmptiesMonotonically(t *testing.T) {
	s := New("ep-1", "Q")
	s.BeginCollaboration([]string{"y", "z"}, "focus on trade flows")

	if !s.CollabLoop() || !s.MoreCollab() {
		t.Fatal("expected collaboration flags set")
	}
	if s.ActiveCollaborator() != "y" {
		t.Fatalf("expected y on deck, got %q", s.ActiveCollaborator())
	}

	var visited []string
	for s.ActiveCollaborator() != "" {
		visited = append(visited, s.ActiveCollaborator())
		s.AdvanceCollaborator()
	}

	if len(visited) != 2 || visited[0] != "y" || visited[1] != "z" {
		t.Errorf("expected each collaborator visited exactly once in order, got %v", visited)
	}
	if s.CollabLoop() || s.MoreCollab() {
		t.Error("expected collaboration flags cleared when queue empties")
	}
	if s.ActiveCollaborator() != "" {
		t.Error("expected no collaborator on deck after queue empties")
	}
}

func TestActiveCollaboratorNilIffQueueEmpty(t *testing.T) {
	s := New("ep-1", "Q")
	if s.ActiveCollaborator() != "" || len(s.CollabQueue()) != 0 {
		t.Fatal("fresh state should have no collaborator")
	}

	s.BeginCollaboration([]string{"y"}, "")
	if s.ActiveCollaborator() == "" || len(s.CollabQueue()) == 0 {
		t.Fatal("populated queue should have a collaborator on deck")
	}

	s.AdvanceCollaborator()
	if s.ActiveCollaborator() != "" || len(s.CollabQueue()) != 0 {
		t.Error("emptied queue should clear the on-deck collaborator")
	}
}

func TestBeginCollaborationEmptyListIsNoop(t *testing.T) {
	s := New("ep-1", "Q")
	s.BeginCollaboration(nil, "areas")
	if s.CollabLoop() || s.ActiveCollaborator() != "" {
		t.Error("empty collaborator list must not start a loop")
	}
}

func TestReflectedNeverReverts(t *testing.T) {
	s := New("ep-1", "Q")
	if s.Reflected("x") {
		t.Fatal("fresh expert should not be reflected")
	}
	s.SetReflection("x", "critique")
	if !s.Reflected("x") {
		t.Fatal("expected reflected after SetReflection")
	}
	// Nothing on the state API can clear it; completing the expert
	// clears collaboration scratch only.
	s.CompleteExpert("x")
	if !s.Reflected("x") {
		t.Error("Reflected reverted within the episode")
	}
}

func TestConversationAppendOnlyAndTagged(t *testing.T) {
	s := New("ep-1", "Q")
	s.NextIteration()
	s.AppendConversation("x", "first analysis")
	s.NextIteration()
	s.AppendConversation("y", "second analysis")

	conv := s.Conversation()
	if len(conv) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(conv))
	}
	if conv[0].Iteration != 1 || conv[0].Expert != "x" {
		t.Errorf("entry 0 mistagged: %+v", conv[0])
	}
	if conv[1].Iteration != 2 || conv[1].Expert != "y" {
		t.Errorf("entry 1 mistagged: %+v", conv[1])
	}

	// Mutating the returned copy must not affect the transcript.
	conv[0].Text = "tampered"
	if s.Conversation()[0].Text != "first analysis" {
		t.Error("Conversation returned a live reference")
	}
}

func TestCompleteExpertClearsOnlyTargetReports(t *testing.T) {
	s := New("ep-1", "Q")
	s.AddCollabReport(CollabReport{Target: "x", Author: "y", Report: "for x"})
	s.AddCollabReport(CollabReport{Target: "z", Author: "y", Report: "for z"})

	s.CompleteExpert("x")
	if len(s.CollabReportsFor("x")) != 0 {
		t.Error("expected x's reports cleared")
	}
	if len(s.CollabReportsFor("z")) != 1 {
		t.Error("expected z's reports retained")
	}
}

func TestDocumentsAccumulate(t *testing.T) {
	s := New("ep-1", "Q")
	s.AppendDocuments([]models.Document{{Source: "a.md", PageContent: "alpha"}})
	s.AppendDocuments([]models.Document{{Source: "b.md", PageContent: "beta"}})

	docs := s.Documents()
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Source != "a.md" || docs[1].Source != "b.md" {
		t.Errorf("unexpected order: %v", docs)
	}
}

// Two episodes interleaved against separate State values must not see
// each other's collaboration flags or queues.
func TestInterleavedEpisodesAreIsolated(t *testing.T) {
	a := New("ep-a", "question A")
	b := New("ep-b", "question B")

	a.SetSelected([]string{"x", "y"})
	b.SetSelected([]string{"p"})

	a.BeginCollaboration([]string{"y"}, "a's areas")
	if b.CollabLoop() {
		t.Fatal("episode B sees episode A's collaboration loop")
	}
	if b.ActiveCollaborator() != "" {
		t.Fatal("episode B sees episode A's collaborator")
	}

	b.SetReflection("p", "b critique")
	if a.Reflected("p") {
		t.Fatal("episode A sees episode B's reflection")
	}

	a.AdvanceCollaborator()
	b.CompleteExpert("p")
	if got := a.Selected(); len(got) != 2 {
		t.Errorf("episode A's selected set disturbed: %v", got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New("ep-1", "Q")
	s.SetSelected([]string{"x"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.AppendConversation("x", fmt.Sprintf("entry %d", n))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Conversation()
			_ = s.CollabLoop()
			_ = s.Selected()
		}()
	}
	wg.Wait()

	if len(s.Conversation()) != 8 {
		t.Errorf("expected 8 entries, got %d", len(s.Conversation()))
	}
}
