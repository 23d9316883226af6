package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/colloquyhq/colloquy/pkg/models"
)

// Episode is a persisted question-answering run.
type Episode struct {
	ID          string     `json:"id"`
	Team        string     `json:"team"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	TokensIn    int64      `json:"tokens_in"`
	TokensOut   int64      `json:"tokens_out"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SaveEpisode writes an episode with its analyses and transcript in one
// transaction.
func (db *DB) SaveEpisode(ep *Episode, analyses map[string]string, transcript []models.TranscriptEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completed interface{}
	if ep.CompletedAt != nil {
		completed = ep.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err = tx.Exec(`
		INSERT INTO episodes (id, team, question, answer, tokens_in, tokens_out, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ep.ID, ep.Team, ep.Question, ep.Answer, ep.TokensIn, ep.TokensOut,
		ep.StartedAt.UTC().Format(time.RFC3339), completed)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}

	for expert, analysis := range analyses {
		if _, err := tx.Exec(`
			INSERT INTO analyses (episode_id, expert, analysis) VALUES (?, ?, ?)
		`, ep.ID, expert, analysis); err != nil {
			return fmt.Errorf("insert analysis for %s: %w", expert, err)
		}
	}

	for _, entry := range transcript {
		if _, err := tx.Exec(`
			INSERT INTO transcript (episode_id, iteration, expert, text, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, ep.ID, entry.Iteration, entry.Expert, entry.Text,
			entry.At.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert transcript entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit episode: %w", err)
	}
	return nil
}

// GetEpisode loads one episode by ID.
func (db *DB) GetEpisode(id string) (*Episode, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, team, question, answer, tokens_in, tokens_out, started_at, completed_at
		FROM episodes WHERE id = ?
	`, id)

	ep, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("episode %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns the most recent episodes up to limit.
func (db *DB) ListEpisodes(limit int) ([]*Episode, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, team, question, answer, tokens_in, tokens_out, started_at, completed_at
		FROM episodes ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// GetAnalyses returns expert -> final analysis for an episode.
func (db *DB) GetAnalyses(episodeID string) (map[string]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT expert, analysis FROM analyses WHERE episode_id = ?
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get analyses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var expert, analysis string
		if err := rows.Scan(&expert, &analysis); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out[expert] = analysis
	}
	return out, rows.Err()
}

// GetTranscript returns an episode's transcript in append order.
func (db *DB) GetTranscript(episodeID string) ([]models.TranscriptEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT iteration, expert, text, created_at
		FROM transcript WHERE episode_id = ? ORDER BY id
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	defer rows.Close()

	var entries []models.TranscriptEntry
	for rows.Next() {
		var e models.TranscriptEntry
		var created string
		if err := rows.Scan(&e.Iteration, &e.Expert, &e.Text, &created); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.At = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var ep Episode
	var started string
	var completed sql.NullString
	if err := row.Scan(&ep.ID, &ep.Team, &ep.Question, &ep.Answer,
		&ep.TokensIn, &ep.TokensOut, &started, &completed); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, started); err == nil {
		ep.StartedAt = t
	}
	if completed.Valid {
		if t, err := time.Parse(time.RFC3339, completed.String); err == nil {
			ep.CompletedAt = &t
		}
	}
	return &ep, nil
}
