package panel

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/colloquyhq/colloquy/internal/state"
)

func openTestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "colloquy.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRunnerPersistsEpisode(t *testing.T) {
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [{"id": "econ", "guidance": "g"}]}`}
	db := openTestDB(t)

	r := &Runner{
		Builder: newTestBuilder(reg, gen, &fakeDecider{}),
		Team:    team,
		DB:      db,
	}
	result, err := r.Ask(context.Background(), "what now?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Answer != "combined answer" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Trace) == 0 || result.Trace[0] != NodeHistorian {
		t.Fatalf("unexpected trace %v", result.Trace)
	}

	ep, err := db.GetEpisode(result.EpisodeID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if ep.Question != "what now?" || ep.Answer != "combined answer" || ep.Team != "test-team" {
		t.Fatalf("persisted episode mismatch: %+v", ep)
	}
	if ep.CompletedAt == nil {
		t.Fatal("completed_at not recorded")
	}

	analyses, err := db.GetAnalyses(result.EpisodeID)
	if err != nil {
		t.Fatalf("GetAnalyses: %v", err)
	}
	if analyses["econ"] != "draft:econ" {
		t.Fatalf("persisted analyses mismatch: %v", analyses)
	}
}

func TestRunnerIsolatesConcurrentEpisodes(t *testing.T) {
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [{"id": "econ", "guidance": "g"}]}`}
	r := &Runner{Builder: newTestBuilder(reg, gen, &fakeDecider{}), Team: team}

	type out struct {
		result *Result
		err    error
	}
	ch := make(chan out, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := r.Ask(context.Background(), "q")
			ch <- out{res, err}
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		o := <-ch
		if o.err != nil {
			t.Fatalf("Ask: %v", o.err)
		}
		if seen[o.result.EpisodeID] {
			t.Fatal("episode IDs collided")
		}
		seen[o.result.EpisodeID] = true
		if o.result.Answer != "combined answer" {
			t.Fatalf("unexpected answer %q", o.result.Answer)
		}
	}
}

func TestEpisodeHistoryDigest(t *testing.T) {
	db := openTestDB(t)
	reg, team := testRoster("econ")
	gen := &fakeGen{selected: `{"experts": [{"id": "econ", "guidance": "g"}]}`}
	r := &Runner{Builder: newTestBuilder(reg, gen, &fakeDecider{}), Team: team, DB: db}

	if _, err := r.Ask(context.Background(), "first question"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	h := &EpisodeHistory{DB: db}
	digest, err := h.RecentHistory(context.Background())
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if !strings.Contains(digest, "Q: first question") || !strings.Contains(digest, "A: combined answer") {
		t.Fatalf("unexpected digest:\n%s", digest)
	}
}

func TestEpisodeHistoryEmptyStore(t *testing.T) {
	db := openTestDB(t)
	h := &EpisodeHistory{DB: db}
	digest, err := h.RecentHistory(context.Background())
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if digest != "" {
		t.Fatalf("empty store should yield empty digest, got %q", digest)
	}
}
