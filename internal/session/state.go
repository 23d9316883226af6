// Package session holds the per-episode state threaded through the
// panel graph. One State is created per user question and discarded
// (or persisted as history) once synthesis completes. All coordination
// flags live here rather than in process globals, so concurrent
// episodes cannot leak routing signals into each other.
package session

import (
	"sync"
	"time"

	"github.com/colloquyhq/colloquy/pkg/models"
)

// ExpertWork is one expert's scratch space within an episode.
type ExpertWork struct {
	// Request is the most recent librarian query composed for this expert.
	Request string
	// DocumentSummary is the librarian's summary for the most recent request.
	DocumentSummary string
	// Analysis is the first draft.
	Analysis string
	// Reflection is the self-critique of the first draft.
	Reflection string
	// Reflected is set once the expert completes its reflect step.
	// It never reverts within an episode.
	Reflected bool
	// FinalAnalysis is the post-revision analysis.
	FinalAnalysis string
}

// CollabReport is a collaborator's contribution addressed to a target expert.
type CollabReport struct {
	// Target is the expert being helped.
	Target string
	// Author is the collaborating expert.
	Author string
	// Report is the contribution text.
	Report string
}

// State is the mutable episode record. All methods are safe for
// concurrent use; within one episode the graph runs single-threaded,
// but observers (TUI, persistence) may read while a node writes.
type State struct {
	mu sync.RWMutex

	episodeID string
	question  string

	guidance map[string]string
	selected []string
	lastActor string

	work map[string]*ExpertWork

	collabAreas  string
	collabQueue  []string
	activeCollab string
	collabLoop   bool
	moreCollab   bool

	collabReports []CollabReport
	documents     []models.Document

	iteration    int
	conversation []models.TranscriptEntry

	history     string
	finalAnswer string
}

// New creates a fresh episode state for a question.
func New(episodeID, question string) *State {
	return &State{
		episodeID: episodeID,
		question:  question,
		guidance:  make(map[string]string),
		work:      make(map[string]*ExpertWork),
	}
}

// EpisodeID returns the episode identifier.
func (s *State) EpisodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.episodeID
}

// Question returns the user's original query. Immutable once set.
func (s *State) Question() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.question
}

// SetGuidance records the moderator's per-expert guidance.
func (s *State) SetGuidance(guidance map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range guidance {
		s.guidance[id] = g
	}
}

// Guidance returns the moderator guidance for an expert.
func (s *State) Guidance(expert string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guidance[expert]
}

// SetSelected records the experts the moderator determined are needed.
func (s *State) SetSelected(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append([]string(nil), ids...)
}

// Selected returns a copy of the experts still owed an episode.
func (s *State) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selected...)
}

// NextSelected returns the first remaining selected expert, or "" when
// none remain. Roster order makes the moderator's visitation
// deterministic.
func (s *State) NextSelected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.selected) == 0 {
		return ""
	}
	return s.selected[0]
}

// SetLastActor records which expert most recently wrote into the state.
// The librarian's return routing depends on it.
func (s *State) SetLastActor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActor = id
}

// LastActor returns the most recent writer's expert ID.
func (s *State) LastActor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActor
}

// Work returns the scratch record for an expert, creating it on first use.
func (s *State) Work(expert string) *ExpertWork {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workLocked(expert)
}

func (s *State) workLocked(expert string) *ExpertWork {
	w, ok := s.work[expert]
	if !ok {
		w = &ExpertWork{}
		s.work[expert] = w
	}
	return w
}

// SetRequest records an expert's librarian query.
func (s *State) SetRequest(expert, request string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workLocked(expert).Request = request
}

// SetDocumentSummary records the librarian's summary for an expert.
func (s *State) SetDocumentSummary(expert, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workLocked(expert).DocumentSummary = summary
}

// SetAnalysis records an expert's first draft.
func (s *State) SetAnalysis(expert, analysis string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workLocked(expert).Analysis = analysis
}

// SetReflection records an expert's self-critique and marks the expert
// reflected. The flag is one-way for the life of the episode.
func (s *State) SetReflection(expert, reflection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.workLocked(expert)
	w.Reflection = reflection
	w.Reflected = true
}

// Reflected reports whether an expert has completed its reflect step.
func (s *State) Reflected(expert string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.work[expert]; ok {
		return w.Reflected
	}
	return false
}

// SetFinalAnalysis records an expert's post-revision analysis.
func (s *State) SetFinalAnalysis(expert, analysis string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workLocked(expert).FinalAnalysis = analysis
}

// FinalAnalyses returns expert ID -> final analysis for every expert
// that produced one.
func (s *State) FinalAnalyses() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for id, w := range s.work {
		if w.FinalAnalysis != "" {
			out[id] = w.FinalAnalysis
		}
	}
	return out
}

// CompleteExpert removes an expert from the selected set and clears the
// collaboration scratch fields so the next expert's cycle starts clean.
// IDs are only ever removed, never re-added.
func (s *State) CompleteExpert(expert string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.selected[:0]
	for _, id := range s.selected {
		if id != expert {
			kept = append(kept, id)
		}
	}
	s.selected = kept

	s.collabAreas = ""
	s.collabQueue = nil
	s.activeCollab = ""
	s.collabLoop = false
	s.moreCollab = false

	reports := s.collabReports[:0]
	for _, r := range s.collabReports {
		if r.Target != expert {
			reports = append(reports, r)
		}
	}
	s.collabReports = reports
}

// BeginCollaboration seeds the collaborator queue for the expert
// currently drafting. The queue head goes on deck immediately.
func (s *State) BeginCollaboration(collaborators []string, areas string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(collaborators) == 0 {
		return
	}
	s.collabQueue = append([]string(nil), collaborators...)
	s.activeCollab = s.collabQueue[0]
	s.collabAreas = areas
	s.collabLoop = true
	s.moreCollab = true
}

// AdvanceCollaborator pops the collaborator on deck after it has
// produced its report. When the queue empties, the loop flags clear and
// no collaborator remains on deck.
func (s *State) AdvanceCollaborator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.collabQueue) == 0 {
		return
	}
	s.collabQueue = s.collabQueue[1:]
	if len(s.collabQueue) == 0 {
		s.activeCollab = ""
		s.collabLoop = false
		s.moreCollab = false
		return
	}
	s.activeCollab = s.collabQueue[0]
	s.collabLoop = true
	s.moreCollab = true
}

// ActiveCollaborator returns the collaborator on deck, or "" when the
// queue is empty.
func (s *State) ActiveCollaborator() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCollab
}

// CollabQueue returns a copy of the pending collaborator queue.
func (s *State) CollabQueue() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.collabQueue...)
}

// CollabLoop reports whether any expert is currently mid-collaboration.
func (s *State) CollabLoop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collabLoop
}

// MoreCollab reports whether collaborators remain in the active queue.
func (s *State) MoreCollab() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moreCollab
}

// CollabAreas returns the focus text for the active collaboration.
func (s *State) CollabAreas() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collabAreas
}

// AddCollabReport appends a collaborator's contribution.
func (s *State) AddCollabReport(r CollabReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collabReports = append(s.collabReports, r)
}

// CollabReportsFor returns all contributions addressed to an expert.
func (s *State) CollabReportsFor(target string) []CollabReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CollabReport
	for _, r := range s.collabReports {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}

// AppendDocuments accumulates retrieved documents. The container is
// appended to, never overwritten.
func (s *State) AppendDocuments(docs []models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, docs...)
}

// Documents returns a copy of all accumulated documents.
func (s *State) Documents() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Document(nil), s.documents...)
}

// NextIteration advances the outer moderator/expert cycle counter and
// returns the new value.
func (s *State) NextIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// Iteration returns the current cycle counter.
func (s *State) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// AppendConversation appends an analysis to the episode transcript,
// tagged with the current iteration and the producing expert.
func (s *State) AppendConversation(expert, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = append(s.conversation, models.TranscriptEntry{
		Iteration: s.iteration,
		Expert:    expert,
		Text:      text,
		At:        time.Now(),
	})
}

// Conversation returns a copy of the transcript so far.
func (s *State) Conversation() []models.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TranscriptEntry(nil), s.conversation...)
}

// SetHistory records prior-conversation context loaded by the
// history-manager step.
func (s *State) SetHistory(history string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
}

// History returns the prior-conversation context for this episode.
func (s *State) History() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// SetFinalAnswer records the synthesized combined answer.
func (s *State) SetFinalAnswer(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalAnswer = answer
}

// FinalAnswer returns the synthesized answer, empty until synthesis runs.
func (s *State) FinalAnswer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalAnswer
}
