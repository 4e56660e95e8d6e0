package engine

import "github.com/flacterm/flacterm/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // A load completed and playback is ready
	EventTrackEnded                    // Track reached its natural end (edge-triggered)
	EventTrackFailed                   // Load or backend command failed
	EventStateChanged                  // Transport state changed (play/pause/stop)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event emitted by the engine.
type Event struct {
	Type  EventType
	Track *track.Track // Track the event refers to (nil for some events)
	State State        // Engine state at emission time
	Err   error        // Failure reason for EventTrackFailed
}
