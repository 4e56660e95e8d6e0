// Package engine provides the playback engine: the single authority over
// transport state and position-to-lyric mapping.
package engine

// State represents the playback transport state.
type State int

const (
	StateIdle    State = iota // No track loaded
	StateLoading              // Backend load in flight
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
	StateStopped              // Playback stopped, backend resources released
	StateEnded                // Track reached its natural end
	StateFailed               // Backend command or load failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RepeatMode controls what happens when a track ends.
// Takes effect at the next track-end decision, not mid-track.
type RepeatMode int

const (
	RepeatOff   RepeatMode = iota // Advance through the queue, then stop
	RepeatTrack                   // Reload the same track at position 0
	RepeatQueue                   // Restart the last drained queue order
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatTrack:
		return "track"
	case RepeatQueue:
		return "queue"
	default:
		return "unknown"
	}
}
