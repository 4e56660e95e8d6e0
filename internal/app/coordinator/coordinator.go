// Package coordinator composes the playback engine and the queue to
// decide what plays next when a track ends.
package coordinator

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/app/engine"
	"github.com/flacterm/flacterm/internal/app/queue"
	"github.com/flacterm/flacterm/internal/domain/lyrics"
	"github.com/flacterm/flacterm/internal/domain/track"
)

// PlaybackEngine is the engine surface the coordinator drives.
type PlaybackEngine interface {
	Load(t track.Track, lyr *lyrics.Track) error
	Play() error
	Pause() error
	Stop() error
	Snapshot() engine.Snapshot
	Events() <-chan engine.Event
}

// LyricsFetcher resolves timed lyrics for a track. A fetch failure
// degrades to playback without lyrics.
type LyricsFetcher interface {
	Fetch(ctx context.Context, t track.Track) (*lyrics.Track, error)
}

// EventType represents a coordinator event type.
type EventType int

const (
	EventNowPlaying       EventType = iota // A track was loaded for playback
	EventPlaybackFailed                    // Failure surfaced, awaiting retry or skip
	EventPlaybackFinished                  // Queue exhausted, playback naturally stopped
	EventStateChanged                      // Transport state change forwarded from the engine
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventNowPlaying:
		return "now_playing"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventPlaybackFinished:
		return "playback_finished"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event is a coordinator-level event for the UI.
type Event struct {
	Type  EventType
	Track *track.Track
	State engine.State
	Err   error
}

// Coordinator owns the next-track decision and the repeat policy.
type Coordinator struct {
	engine PlaybackEngine
	queue  *queue.Manager
	lyrics LyricsFetcher // may be nil

	mu          sync.Mutex
	drained     []track.Track // dequeued since the last restart point
	lastDrained []track.Track // order of the last fully drained queue

	eventCh chan Event
}

// New creates a coordinator. fetcher may be nil to disable lyrics.
func New(eng PlaybackEngine, q *queue.Manager, fetcher LyricsFetcher) *Coordinator {
	return &Coordinator{
		engine:  eng,
		queue:   q,
		lyrics:  fetcher,
		eventCh: make(chan Event, 16),
	}
}

// Events returns the coordinator's event channel.
func (c *Coordinator) Events() <-chan Event {
	return c.eventCh
}

// Run consumes engine events until ctx is done or the engine closes its
// channel. Intended to run in its own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.engine.Events():
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev engine.Event) {
	switch ev.Type {
	case engine.EventTrackEnded:
		c.onTrackEnded(ctx)
	case engine.EventTrackFailed:
		// No auto-advance: silently cycling a queue would mask a
		// persistent backend error. The user retries or skips.
		zlog.Warn().Err(ev.Err).Msg("coordinator: playback failed, waiting for user action")
		c.send(Event{Type: EventPlaybackFailed, Track: ev.Track, State: ev.State, Err: ev.Err})
	case engine.EventTrackStarted:
		c.send(Event{Type: EventNowPlaying, Track: ev.Track, State: ev.State})
	default:
		c.send(Event{Type: EventStateChanged, Track: ev.Track, State: ev.State})
	}
}

// onTrackEnded applies the repeat policy recorded in the engine
// snapshot at end time.
func (c *Coordinator) onTrackEnded(ctx context.Context) {
	snap := c.engine.Snapshot()

	if snap.Repeat == engine.RepeatTrack && snap.Track != nil {
		zlog.Debug().Msgf("coordinator: repeating track %s", snap.Track.ID)
		c.playTrack(ctx, *snap.Track)
		return
	}

	if next, ok := c.dequeue(); ok {
		c.playTrack(ctx, next)
		return
	}

	if snap.Repeat == engine.RepeatQueue {
		if restart := c.takeRestartSequence(); len(restart) > 0 {
			zlog.Debug().Msgf("coordinator: restarting drained queue of %d tracks", len(restart))
			for _, t := range restart {
				c.queue.Enqueue(t)
			}
			if next, ok := c.dequeue(); ok {
				c.playTrack(ctx, next)
				return
			}
		}
	}

	zlog.Debug().Msg("coordinator: queue exhausted, playback finished")
	c.send(Event{Type: EventPlaybackFinished, Track: snap.Track, State: snap.State})
}

// PlayNow loads and plays a track immediately, bypassing the queue.
func (c *Coordinator) PlayNow(ctx context.Context, t track.Track) error {
	return c.playTrack(ctx, t)
}

// Enqueue appends a track to the pending queue.
func (c *Coordinator) Enqueue(t track.Track) string {
	return c.queue.Enqueue(t)
}

// Skip abandons the current track and plays the next queued one, or
// stops when the queue is empty. Manual skips ignore repeat Track.
func (c *Coordinator) Skip(ctx context.Context) error {
	if next, ok := c.dequeue(); ok {
		return c.playTrack(ctx, next)
	}
	if err := c.engine.Stop(); err != nil {
		return err
	}
	snap := c.engine.Snapshot()
	c.send(Event{Type: EventPlaybackFinished, Track: snap.Track, State: snap.State})
	return nil
}

// Retry reloads the current track after a failure.
func (c *Coordinator) Retry(ctx context.Context) error {
	snap := c.engine.Snapshot()
	if snap.Track == nil {
		return nil
	}
	return c.playTrack(ctx, *snap.Track)
}

// TogglePause flips between Playing and Paused.
func (c *Coordinator) TogglePause() error {
	if c.engine.Snapshot().State == engine.StatePlaying {
		return c.engine.Pause()
	}
	return c.engine.Play()
}

// ClearQueue empties the queue and forgets the restart marker, so a
// cleared queue never restarts under repeat Queue.
func (c *Coordinator) ClearQueue() {
	c.queue.Clear()
	c.mu.Lock()
	c.drained = nil
	c.lastDrained = nil
	c.mu.Unlock()
}

// dequeue pops the oldest queued track and maintains the drained-order
// bookkeeping. The restart snapshot is taken exactly when a dequeue
// empties the queue.
func (c *Coordinator) dequeue() (track.Track, bool) {
	t, ok := c.queue.DequeueOldest()
	if !ok {
		return track.Track{}, false
	}

	c.mu.Lock()
	c.drained = append(c.drained, t)
	if c.queue.Len() == 0 {
		c.lastDrained = c.drained
		c.drained = nil
	}
	c.mu.Unlock()
	return t, true
}

func (c *Coordinator) takeRestartSequence() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]track.Track, len(c.lastDrained))
	copy(out, c.lastDrained)
	return out
}

// playTrack fetches lyrics (best effort) and starts playback.
func (c *Coordinator) playTrack(ctx context.Context, t track.Track) error {
	var lyr *lyrics.Track
	if c.lyrics != nil {
		fetched, err := c.lyrics.Fetch(ctx, t)
		if err != nil {
			zlog.Warn().Err(err).Msgf("coordinator: lyrics fetch failed for %s, playing without lyrics", t.ID)
		} else {
			lyr = fetched
		}
	}

	if err := c.engine.Load(t, lyr); err != nil {
		return err
	}
	return c.engine.Play()
}

// send emits a coordinator event without blocking.
func (c *Coordinator) send(ev Event) {
	select {
	case c.eventCh <- ev:
	default:
		zlog.Warn().Msgf("coordinator: event channel full, dropping %s", ev.Type)
	}
}
