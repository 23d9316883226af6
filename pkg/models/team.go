package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxSlots is the maximum number of expert slots in a team roster.
const MaxSlots = 8

// nullSlotPrefix marks an unused roster slot (e.g. "null_3").
const nullSlotPrefix = "null_"

// IsNullSlot reports whether a roster entry is an unused slot sentinel.
func IsNullSlot(id string) bool {
	return strings.HasPrefix(id, nullSlotPrefix)
}

// Team is an ordered roster of up to MaxSlots expert IDs.
// Slots holding a "null_N" sentinel are unused.
type Team struct {
	// Name identifies the team.
	Name string `yaml:"name" json:"name"`
	// Description is an optional summary of the team's coverage.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Slots is the ordered roster. Entries are expert IDs or null sentinels.
	Slots []string `yaml:"slots" json:"slots"`
}

// Experts returns the configured (non-null) expert IDs in roster order.
func (t Team) Experts() []string {
	var ids []string
	for _, slot := range t.Slots {
		if slot == "" || IsNullSlot(slot) {
			continue
		}
		ids = append(ids, slot)
	}
	return ids
}

// Validate checks roster shape: slot count and duplicate expert IDs.
func (t Team) Validate() error {
	if len(t.Slots) > MaxSlots {
		return fmt.Errorf("team %q has %d slots, maximum is %d", t.Name, len(t.Slots), MaxSlots)
	}
	seen := make(map[string]bool)
	for _, id := range t.Experts() {
		if seen[id] {
			return fmt.Errorf("team %q lists expert %q more than once", t.Name, id)
		}
		seen[id] = true
	}
	return nil
}

// LoadTeam reads a team roster from a YAML file.
func LoadTeam(path string) (Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Team{}, fmt.Errorf("read team file: %w", err)
	}
	var t Team
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Team{}, fmt.Errorf("parse team file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Team{}, err
	}
	return t, nil
}
