package panel

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType represents the type of panel event.
type EventType string

const (
	// EventEpisodeStarted indicates an episode began.
	EventEpisodeStarted EventType = "episode_started"
	// EventModeratorDecided indicates the moderator selected the panel.
	EventModeratorDecided EventType = "moderator_decided"
	// EventLibrarianFetched indicates a librarian retrieval completed.
	EventLibrarianFetched EventType = "librarian_fetched"
	// EventExpertDrafted indicates an expert produced its first draft.
	EventExpertDrafted EventType = "expert_drafted"
	// EventExpertReflected indicates an expert completed its self-critique.
	EventExpertReflected EventType = "expert_reflected"
	// EventCollabStarted indicates an expert requested collaborators.
	EventCollabStarted EventType = "collab_started"
	// EventCollabReport indicates a collaborator delivered its contribution.
	EventCollabReport EventType = "collab_report"
	// EventExpertCompleted indicates an expert finished its episode.
	EventExpertCompleted EventType = "expert_completed"
	// EventExpertFailed indicates an expert's cycle degraded on error.
	EventExpertFailed EventType = "expert_failed"
	// EventSynthesisCompleted indicates the combined answer was produced.
	EventSynthesisCompleted EventType = "synthesis_completed"
	// EventEpisodeDone indicates the episode finished.
	EventEpisodeDone EventType = "episode_done"
	// EventStreamDelta carries a live text fragment from a streaming call.
	EventStreamDelta EventType = "stream_delta"
)

// Event is emitted by panel nodes as an episode progresses. Events feed
// the TUI and CLI progress output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Expert is the ID of the related expert, if applicable.
	Expert string
	// Target is the expert being helped, for collaboration events.
	Target string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Iteration is the episode cycle counter when the event occurred.
	Iteration int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter provides thread-safe event emission to subscribers.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{events: make(chan Event, bufferSize)}
}

// Emit sends an event. If the channel is full it waits briefly for the
// receiver to drain before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			log.Printf("[panel] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call once the episode is finished.
func (e *EventEmitter) Close() {
	close(e.events)
}
