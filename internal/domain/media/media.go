// Package media defines the contract between the playback engine and
// the audio transport implementations.
package media

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrPositionUnknown is returned when the backend cannot report a
// position or duration yet (e.g. a live stream before headers arrive).
var ErrPositionUnknown = errors.New("media: position unknown")

// Backend is an opaque audio transport capable of loading a stream URL.
// Implementations may be slow to report state after a command; callers
// must not hold locks across Backend or Handle calls.
type Backend interface {
	// Load opens the stream and prepares it for playback, paused.
	// The context bounds the load; a cancelled or expired context must
	// abort the load and release any partially acquired resources.
	Load(ctx context.Context, url string) (Handle, error)
}

// Handle is the transport surface over one loaded track.
type Handle interface {
	Play() error
	Pause() error
	// Stop releases the handle's resources. Idempotent.
	Stop() error
	Seek(pos time.Duration) error
	// Position returns the current playback position, or
	// ErrPositionUnknown when the backend cannot report one.
	Position() (time.Duration, error)
	// Duration returns the total duration, or ErrPositionUnknown when
	// it is not known (yet).
	Duration() (time.Duration, error)
	// SetVolume sets the output volume, 0..100.
	SetVolume(level int) error
	// Ended reports whether the backend signalled a natural stop.
	Ended() bool
}
