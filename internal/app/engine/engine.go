package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/flacterm/flacterm/internal/domain/lyrics"
	"github.com/flacterm/flacterm/internal/domain/media"
	"github.com/flacterm/flacterm/internal/domain/track"
)

// Errors
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSeekUnavailable        = errors.New("seek unavailable: duration unknown")
	ErrLoadTimeout            = errors.New("load timed out")
	ErrNoTrack                = errors.New("no track loaded")
)

// Config holds engine configuration.
type Config struct {
	PollInterval         time.Duration // Position poll cadence
	LoadTimeout          time.Duration // Bound on a single backend load
	DriftTolerance       time.Duration // Max seek drift before the polled position wins
	PollFailureThreshold int           // Consecutive failed ticks before StateFailed
	Autoplay             bool          // Transition to Playing after a successful load
	InitialVolume        int           // Startup volume, 0..100
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = time.Second
	}
	if c.PollFailureThreshold <= 0 {
		c.PollFailureThreshold = 5
	}
	if c.InitialVolume < 0 {
		c.InitialVolume = 0
	}
	if c.InitialVolume > 100 {
		c.InitialVolume = 100
	}
}

// Snapshot is a point-in-time read-only view of the engine.
type Snapshot struct {
	Track         *track.Track
	State         State
	Err           error // Failure reason when State is StateFailed
	Position      time.Duration
	Duration      time.Duration
	DurationKnown bool
	CueIndex      int    // Active lyric cue index, -1 when none
	CueText       string // Text of the active cue, "" when none
	Repeat        RepeatMode
	Volume        int
}

// Engine owns the transport state machine, drives the background
// position-polling loop and computes the active lyric cue. All internal
// state is guarded by a single mutex; backend calls are issued outside
// the lock so Snapshot is never stalled by a slow backend.
type Engine struct {
	backend media.Backend
	cfg     Config

	mu            sync.RWMutex
	state         State
	failure       error
	current       *track.Track
	lyr           *lyrics.Track
	cueIndex      int
	handle        media.Handle
	position      time.Duration
	duration      time.Duration
	durationKnown bool
	seekPending   bool
	volume        int
	repeat        RepeatMode
	loadGen       uint64
	prevEnded     bool
	pollFailures  int
	pollCancel    context.CancelFunc
	loadCancel    context.CancelFunc
	closed        bool

	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new playback engine on top of the given backend.
func New(backend media.Backend, cfg Config) *Engine {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		backend:  backend,
		cfg:      cfg,
		state:    StateIdle,
		cueIndex: -1,
		volume:   cfg.InitialVolume,
		eventCh:  make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Load loads a track (with optional timed lyrics) into the backend.
// A load superseded by a newer Load before completion never mutates
// state after the newer load begins; its late result is discarded.
func (e *Engine) Load(t track.Track, lyr *lyrics.Track) error {
	return e.load(t, lyr, e.cfg.Autoplay)
}

func (e *Engine) load(t track.Track, lyr *lyrics.Track, autoplay bool) error {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	if e.loadCancel != nil {
		e.loadCancel()
	}
	loadCtx, loadCancel := context.WithCancel(e.ctx)
	e.loadCancel = loadCancel
	oldHandle := e.handle
	e.handle = nil
	e.state = StateLoading
	e.failure = nil
	cur := t
	e.current = &cur
	e.lyr = lyr
	e.cueIndex = -1
	e.position = 0
	e.duration = t.Duration
	e.durationKnown = t.Duration > 0
	e.seekPending = false
	e.prevEnded = false
	e.pollFailures = 0
	vol := e.volume
	e.mu.Unlock()

	if oldHandle != nil {
		_ = oldHandle.Stop()
	}

	zlog.Debug().Msgf("engine: loading track: id=%s title=%s url=%s", t.ID, t.Title, t.StreamURL)

	defer loadCancel()
	ctx, cancel := context.WithTimeout(loadCtx, e.cfg.LoadTimeout)
	defer cancel()
	h, err := e.backend.Load(ctx, t.StreamURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(ErrLoadTimeout, "track %s", t.ID)
		}
		return e.failLoad(gen, err)
	}

	// Backend reads and commands stay outside the lock.
	var dur time.Duration
	durKnown := false
	if d, derr := h.Duration(); derr == nil && d > 0 {
		dur, durKnown = d, true
	}
	_ = h.SetVolume(vol)
	if autoplay {
		if perr := h.Play(); perr != nil {
			_ = h.Stop()
			return e.failLoad(gen, errors.Wrap(perr, "autoplay"))
		}
	}

	e.mu.Lock()
	if gen != e.loadGen {
		// Superseded while the backend call was in flight.
		e.mu.Unlock()
		_ = h.Stop()
		return nil
	}
	e.handle = h
	if durKnown {
		e.duration = dur
		e.durationKnown = true
	}
	if autoplay {
		e.state = StatePlaying
	} else {
		e.state = StatePaused
	}
	e.startPollLoopLocked(gen)
	st := e.state
	e.mu.Unlock()

	e.sendEvent(Event{Type: EventTrackStarted, Track: &cur, State: st})
	return nil
}

// failLoad records a load failure unless the load was superseded.
func (e *Engine) failLoad(gen uint64, err error) error {
	e.mu.Lock()
	if gen != e.loadGen {
		e.mu.Unlock()
		return nil
	}
	e.state = StateFailed
	e.failure = err
	cur := e.current
	e.mu.Unlock()

	zlog.Warn().Err(err).Msg("engine: load failed")
	e.sendEvent(Event{Type: EventTrackFailed, Track: cur, State: StateFailed, Err: err})
	return err
}

// Play resumes playback. A no-op while already playing; from Stopped it
// reloads the current track from position 0.
func (e *Engine) Play() error {
	e.mu.RLock()
	st := e.state
	h := e.handle
	gen := e.loadGen
	cur := e.current
	lyr := e.lyr
	e.mu.RUnlock()

	switch st {
	case StatePlaying:
		return nil
	case StatePaused:
		if h == nil {
			return errors.Wrap(ErrNoTrack, "play")
		}
		if err := h.Play(); err != nil {
			return e.failLoad(gen, errors.Wrap(err, "play"))
		}
		e.mu.Lock()
		if gen == e.loadGen && e.state == StatePaused {
			e.state = StatePlaying
		}
		st = e.state
		e.mu.Unlock()
		e.sendEvent(Event{Type: EventStateChanged, Track: cur, State: st})
		return nil
	case StateStopped:
		if cur == nil {
			return errors.Wrapf(ErrInvalidStateTransition, "play from %s without a track", st)
		}
		return e.load(*cur, lyr, true)
	default:
		return errors.Wrapf(ErrInvalidStateTransition, "play from %s", st)
	}
}

// Pause pauses playback. A no-op while already paused.
func (e *Engine) Pause() error {
	e.mu.RLock()
	st := e.state
	h := e.handle
	gen := e.loadGen
	cur := e.current
	e.mu.RUnlock()

	switch st {
	case StatePaused:
		return nil
	case StatePlaying:
		if h == nil {
			return errors.Wrap(ErrNoTrack, "pause")
		}
		if err := h.Pause(); err != nil {
			return e.failLoad(gen, errors.Wrap(err, "pause"))
		}
		e.mu.Lock()
		if gen == e.loadGen && e.state == StatePlaying {
			e.state = StatePaused
		}
		st = e.state
		e.mu.Unlock()
		e.sendEvent(Event{Type: EventStateChanged, Track: cur, State: st})
		return nil
	default:
		return errors.Wrapf(ErrInvalidStateTransition, "pause from %s", st)
	}
}

// Stop stops playback and releases backend resources. Idempotent; the
// last track identity and position stay visible in snapshots.
// Stopping while a load is in flight invalidates that load: its late
// result is discarded and any handle it produces is released.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateIdle || e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	e.loadGen++
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
	h := e.handle
	e.handle = nil
	e.state = StateStopped
	e.seekPending = false
	cur := e.current
	e.mu.Unlock()

	if h != nil {
		_ = h.Stop()
	}
	e.sendEvent(Event{Type: EventStateChanged, Track: cur, State: StateStopped})
	return nil
}

// Seek moves playback to pos, clamped to [0, duration]. The tracked
// position is updated optimistically before the backend confirms; the
// next poll reconciles it.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.RLock()
	h := e.handle
	gen := e.loadGen
	durKnown := e.durationKnown
	dur := e.duration
	lyr := e.lyr
	e.mu.RUnlock()

	if h == nil {
		return errors.Wrap(ErrNoTrack, "seek")
	}
	if !durKnown {
		return errors.Wrapf(ErrSeekUnavailable, "seek to %v", pos)
	}

	if pos < 0 {
		pos = 0
	}
	if pos > dur {
		pos = dur
	}

	if err := h.Seek(pos); err != nil {
		return e.failLoad(gen, errors.Wrapf(err, "seek to %v", pos))
	}

	e.mu.Lock()
	if gen == e.loadGen {
		e.position = pos
		e.seekPending = true
		e.prevEnded = false
		if lyr != nil {
			e.cueIndex = lyr.CueIndexAt(pos)
		}
	}
	e.mu.Unlock()
	return nil
}

// SetRepeatMode sets the repeat mode. Takes effect at the next
// track-end decision.
func (e *Engine) SetRepeatMode(mode RepeatMode) {
	e.mu.Lock()
	e.repeat = mode
	e.mu.Unlock()
}

// SetVolume sets the volume, clamped to [0, 100]. Applied to the live
// handle when one exists, remembered for the next load otherwise.
func (e *Engine) SetVolume(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	e.mu.Lock()
	e.volume = level
	h := e.handle
	e.mu.Unlock()

	if h != nil {
		_ = h.SetVolume(level)
	}
}

// Snapshot returns a consistent, non-torn view of the engine state.
// Safe to call from any goroutine; never blocked by backend calls.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Track:         e.current,
		State:         e.state,
		Err:           e.failure,
		Position:      e.position,
		Duration:      e.duration,
		DurationKnown: e.durationKnown,
		CueIndex:      e.cueIndex,
		Repeat:        e.repeat,
		Volume:        e.volume,
	}
	if e.lyr != nil && e.cueIndex >= 0 && e.cueIndex < e.lyr.Len() {
		snap.CueText = e.lyr.Cue(e.cueIndex).Text
	}
	return snap
}

// Close shuts the engine down and releases backend resources.
func (e *Engine) Close() {
	e.cancel()
	_ = e.Stop()

	// Taking the write lock here fences out in-flight sendEvent calls,
	// so no sender can hit the channel after it is closed.
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	close(e.eventCh)
}

// startPollLoopLocked starts the polling loop for the given load
// generation. Must be called with the lock held.
func (e *Engine) startPollLoopLocked(gen uint64) {
	ctx, cancel := context.WithCancel(e.ctx)
	e.pollCancel = cancel
	go e.pollLoop(ctx, gen)
}

// pollLoop runs at a fixed cadence while the load generation is
// current. Ticks in non-playing states perform no backend reads.
func (e *Engine) pollLoop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.pollTick(gen) {
				return
			}
		}
	}
}

// pollTick performs one poll cycle. Returns false when the loop should
// stop (superseded load, track ended, engine failed).
func (e *Engine) pollTick(gen uint64) bool {
	e.mu.RLock()
	if gen != e.loadGen {
		e.mu.RUnlock()
		return false
	}
	st := e.state
	h := e.handle
	e.mu.RUnlock()

	if st != StatePlaying || h == nil {
		return st == StatePlaying || st == StatePaused
	}

	// Backend reads outside the lock.
	pos, posErr := h.Position()
	dur, durErr := h.Duration()
	ended := h.Ended()

	e.mu.Lock()
	if gen != e.loadGen || e.state != StatePlaying {
		e.mu.Unlock()
		return gen == e.loadGen
	}

	if posErr != nil {
		// Transient tick failure: logged and retried, escalated only
		// when it recurs beyond the threshold.
		e.pollFailures++
		failures := e.pollFailures
		e.mu.Unlock()

		zlog.Warn().Err(posErr).Msgf("engine: poll tick failed (%d consecutive)", failures)
		if failures >= e.cfg.PollFailureThreshold {
			_ = e.failLoad(gen, errors.Wrap(posErr, "position polling"))
			return false
		}
		return true
	}
	e.pollFailures = 0

	if durErr == nil && dur > 0 {
		e.duration = dur
		e.durationKnown = true
	}

	if e.seekPending {
		drift := pos - e.position
		if drift < 0 {
			drift = -drift
		}
		if drift > e.cfg.DriftTolerance {
			// Materially different: the polled value wins.
			e.position = pos
		}
		e.seekPending = false
	} else {
		e.position = pos
	}

	if e.lyr != nil {
		e.cueIndex = e.lyr.CueIndexAt(e.position)
	}

	isEnded := ended || (e.durationKnown && e.duration > 0 && pos >= e.duration)
	if isEnded && !e.prevEnded {
		// Edge-triggered: exactly once per track end.
		e.prevEnded = true
		e.state = StateEnded
		if e.pollCancel != nil {
			e.pollCancel()
			e.pollCancel = nil
		}
		endedTrack := e.current
		e.mu.Unlock()

		zlog.Debug().Msgf("engine: track ended: id=%s position=%v", endedTrack.ID, pos)
		e.sendEvent(Event{Type: EventTrackEnded, Track: endedTrack, State: StateEnded})
		return false
	}

	e.mu.Unlock()
	return true
}

// sendEvent sends an event without blocking. Must not be called with
// the engine lock held.
func (e *Engine) sendEvent(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
		zlog.Warn().Msgf("engine: event channel full, dropping %s", ev.Type)
	}
}
