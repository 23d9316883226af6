package models

import "time"

// ExpertStatus represents the current state of an expert within an episode.
type ExpertStatus string

const (
	// ExpertStatusIdle indicates the expert has not been visited yet.
	ExpertStatusIdle ExpertStatus = "idle"
	// ExpertStatusResearching indicates the expert is waiting on a librarian fetch.
	ExpertStatusResearching ExpertStatus = "researching"
	// ExpertStatusDrafting indicates the expert is producing its initial analysis.
	ExpertStatusDrafting ExpertStatus = "drafting"
	// ExpertStatusCollaborating indicates the expert is mid-collaboration.
	ExpertStatusCollaborating ExpertStatus = "collaborating"
	// ExpertStatusRevising indicates the expert is producing its final analysis.
	ExpertStatusRevising ExpertStatus = "revising"
	// ExpertStatusDone indicates the expert finished its episode.
	ExpertStatusDone ExpertStatus = "done"
	// ExpertStatusFailed indicates the expert's cycle was aborted by an error.
	ExpertStatusFailed ExpertStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ExpertStatus) Valid() bool {
	switch s {
	case ExpertStatusIdle, ExpertStatusResearching, ExpertStatusDrafting,
		ExpertStatusCollaborating, ExpertStatusRevising, ExpertStatusDone,
		ExpertStatusFailed:
		return true
	default:
		return false
	}
}

// Expert is the definition of a fixed-role panel member.
// Definitions are configuration: they are loaded from YAML files and
// registered at startup, never mutated by the engine.
type Expert struct {
	// ID is the stable identifier used in team rosters and node names.
	ID string `yaml:"id" json:"id"`
	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`
	// Role is a one-line description of the expert's perspective.
	Role string `yaml:"role" json:"role"`
	// Instructions is the full role prompt injected into every LLM call
	// made on this expert's behalf.
	Instructions string `yaml:"instructions" json:"instructions"`
	// Focus lists subject areas used when composing librarian requests.
	Focus []string `yaml:"focus,omitempty" json:"focus,omitempty"`
}

// TranscriptEntry is one analysis appended to the episode conversation.
// Entries are append-only and never truncated mid-episode.
type TranscriptEntry struct {
	// Iteration is the moderator/expert cycle counter when the entry was produced.
	Iteration int `json:"iteration"`
	// Expert is the ID of the producing expert ("moderator", "synthesis" for system steps).
	Expert string `json:"expert"`
	// Text is the analysis text.
	Text string `json:"text"`
	// At is when the entry was appended.
	At time.Time `json:"at"`
}
