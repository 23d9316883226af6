package librarian

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/colloquyhq/colloquy/pkg/models"
)

// Store is the SQLite-backed document library.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenStore opens (creating if needed) the library database at path.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open library database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Add inserts a document and returns its assigned ID.
func (s *Store) Add(doc models.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO documents (source, title, content, added_at)
		VALUES (?, ?, ?, ?)
	`, doc.Source, doc.Title, doc.PageContent, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}
	return id, nil
}

// Count returns the number of documents in the library.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Search scores documents by query term frequency and returns the top
// limit hits, best first. Scoring is deterministic: ties break on
// insertion order.
func (s *Store) Search(query string, limit int) ([]models.Document, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, source, title, content FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("scan library: %w", err)
	}
	defer rows.Close()

	type scored struct {
		doc   models.Document
		score int
	}
	var hits []scored

	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Source, &d.Title, &d.PageContent); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		lower := strings.ToLower(d.PageContent + " " + d.Title)
		score := 0
		for _, term := range terms {
			score += strings.Count(lower, term)
		}
		if score > 0 {
			hits = append(hits, scored{doc: d, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	docs := make([]models.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	return docs, nil
}

// queryTerms lowercases and splits a request into search terms,
// dropping short stopword-ish tokens.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var terms []string
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}
