package panel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/colloquyhq/colloquy/internal/api"
	"github.com/colloquyhq/colloquy/internal/session"
	"github.com/colloquyhq/colloquy/internal/state"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// Result is one completed episode.
type Result struct {
	// EpisodeID identifies the episode, also used as the persistence key.
	EpisodeID string
	// Answer is the synthesized combined answer.
	Answer string
	// Analyses maps expert ID to final analysis.
	Analyses map[string]string
	// Transcript is the full episode conversation.
	Transcript []models.TranscriptEntry
	// Trace lists the graph nodes visited, in order.
	Trace []string
}

// Runner executes episodes for one team and persists them.
type Runner struct {
	// Builder wires the episode graph.
	Builder *Builder
	// Team is the roster to convene.
	Team models.Team
	// DB persists completed episodes when set.
	DB *state.DB
	// Tracker supplies token usage for the persisted record when set.
	Tracker *api.TokenTracker
}

// Ask runs one full episode for a question. Each call gets a fresh
// episode state, so concurrent Asks do not interfere.
func (r *Runner) Ask(ctx context.Context, question string) (*Result, error) {
	runnable, err := r.Builder.Build(r.Team)
	if err != nil {
		return nil, err
	}

	episodeID := uuid.New().String()
	s := session.New(episodeID, question)
	startedAt := time.Now()

	if r.Builder.Events != nil {
		r.Builder.Events.Emit(Event{Type: EventEpisodeStarted, Message: question})
	}
	debugLog("[runner] episode %s started: %s", episodeID, clip(question, 120))

	trace, err := runnable.Run(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("episode %s: %w", episodeID, err)
	}

	result := &Result{
		EpisodeID:  episodeID,
		Answer:     s.FinalAnswer(),
		Analyses:   s.FinalAnalyses(),
		Transcript: s.Conversation(),
		Trace:      trace,
	}

	if r.DB != nil {
		if err := r.persist(result, question, startedAt); err != nil {
			// The answer is already in hand; a persistence failure is
			// reported but does not fail the episode.
			debugLog("[runner] episode %s persistence failed: %v", episodeID, err)
		}
	}

	if r.Builder.Events != nil {
		r.Builder.Events.Emit(Event{Type: EventEpisodeDone, Message: episodeID})
	}
	debugLog("[runner] episode %s done in %s (%d nodes visited)",
		episodeID, time.Since(startedAt).Round(time.Millisecond), len(trace))
	return result, nil
}

func (r *Runner) persist(result *Result, question string, startedAt time.Time) error {
	completed := time.Now()
	ep := &state.Episode{
		ID:          result.EpisodeID,
		Team:        r.Team.Name,
		Question:    question,
		Answer:      result.Answer,
		StartedAt:   startedAt,
		CompletedAt: &completed,
	}
	if r.Tracker != nil {
		ep.TokensIn, ep.TokensOut = r.Tracker.Total()
	}
	return r.DB.SaveEpisode(ep, result.Analyses, result.Transcript)
}

// EpisodeHistory adapts the persistence layer to the historian step,
// summarizing the most recent episodes as prior-conversation context.
type EpisodeHistory struct {
	DB    *state.DB
	Limit int
}

// RecentHistory renders the last few episodes as a compact
// question/answer digest. An empty store yields an empty string.
func (h *EpisodeHistory) RecentHistory(ctx context.Context) (string, error) {
	limit := h.Limit
	if limit <= 0 {
		limit = 3
	}
	episodes, err := h.DB.ListEpisodes(limit)
	if err != nil {
		return "", err
	}
	if len(episodes) == 0 {
		return "", nil
	}

	var b strings.Builder
	// ListEpisodes is newest-first; render oldest-first for reading order.
	for i := len(episodes) - 1; i >= 0; i-- {
		ep := episodes[i]
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", ep.Question, clip(ep.Answer, 600))
	}
	return strings.TrimSpace(b.String()), nil
}
