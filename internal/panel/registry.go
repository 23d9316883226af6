// Package panel implements the expert-panel orchestration engine: the
// registry of expert definitions, the per-expert state machine, the
// router functions, and the graph builder that wires a team roster into
// an executable episode graph.
package panel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/colloquyhq/colloquy/pkg/models"
)

// UnresolvedExpertError reports roster entries with no registered
// definition. Graph construction fails loudly on these instead of
// silently building a smaller panel.
type UnresolvedExpertError struct {
	Missing []string
}

func (e *UnresolvedExpertError) Error() string {
	return fmt.Sprintf("unresolved experts: %s", strings.Join(e.Missing, ", "))
}

// Registry maps expert IDs to their definitions. It is populated at
// startup and may be reloaded when definition files change.
type Registry struct {
	mu      sync.RWMutex
	experts map[string]models.Expert
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{experts: make(map[string]models.Expert)}
}

// Register adds or replaces an expert definition.
func (r *Registry) Register(e models.Expert) error {
	if e.ID == "" {
		return fmt.Errorf("expert definition has empty id")
	}
	if models.IsNullSlot(e.ID) {
		return fmt.Errorf("expert id %q collides with the null slot sentinel", e.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experts[e.ID] = e
	return nil
}

// Get returns the definition for an expert ID.
func (r *Registry) Get(id string) (models.Expert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.experts[id]
	return e, ok
}

// IDs returns all registered expert IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.experts))
	for id := range r.experts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered experts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.experts)
}

// Resolve maps roster entries to definitions, skipping null slots.
// Every unresolved ID is collected; if any are missing the returned
// error names them all.
func (r *Registry) Resolve(ids []string) ([]models.Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var resolved []models.Expert
	var missing []string
	for _, id := range ids {
		if id == "" || models.IsNullSlot(id) {
			continue
		}
		e, ok := r.experts[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, e)
	}
	if len(missing) > 0 {
		return nil, &UnresolvedExpertError{Missing: missing}
	}
	return resolved, nil
}

// LoadDir registers every expert definition file (*.yaml, *.yml) in dir.
// Returns the number of definitions loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read experts directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		e, err := loadExpertFile(path)
		if err != nil {
			return loaded, err
		}
		if err := r.Register(e); err != nil {
			return loaded, fmt.Errorf("register %s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}

func loadExpertFile(path string) (models.Expert, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Expert{}, fmt.Errorf("read expert file: %w", err)
	}
	var e models.Expert
	if err := yaml.Unmarshal(data, &e); err != nil {
		return models.Expert{}, fmt.Errorf("parse expert file %s: %w", path, err)
	}
	if e.ID == "" {
		return models.Expert{}, fmt.Errorf("expert file %s has no id", path)
	}
	return e, nil
}
