// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playable remote track.
// Immutable once constructed. Duration may be zero until the media
// backend reports it after load (live/streamed sources).
type Track struct {
	ID        string        // Catalog track ID
	Title     string        // Track title
	Artist    string        // Primary artist name
	Album     string        // Album name
	Duration  time.Duration // Track duration (0 if unknown until loaded)
	StreamURL string        // Playable stream URL
}

// HasKnownDuration reports whether the duration is known up front.
func (t *Track) HasKnownDuration() bool {
	return t.Duration > 0
}

// Display returns a human-readable "Artist - Title" label.
func (t *Track) Display() string {
	if t.Artist == "" {
		return t.Title
	}
	return strings.TrimSpace(t.Artist + " - " + t.Title)
}
