package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flacterm/flacterm/internal/app/engine"
	"github.com/flacterm/flacterm/internal/app/queue"
	"github.com/flacterm/flacterm/internal/domain/lyrics"
	"github.com/flacterm/flacterm/internal/domain/track"
)

// fakeEngine records loads and lets tests inject engine events.
type fakeEngine struct {
	mu      sync.Mutex
	events  chan engine.Event
	loads   []track.Track
	lyrics  []*lyrics.Track
	plays   int
	stops   int
	repeat  engine.RepeatMode
	state   engine.State
	current *track.Track
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan engine.Event, 16), state: engine.StateIdle}
}

func (f *fakeEngine) Load(t track.Track, lyr *lyrics.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, t)
	f.lyrics = append(f.lyrics, lyr)
	cur := t
	f.current = &cur
	f.state = engine.StatePlaying
	return nil
}

func (f *fakeEngine) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	f.state = engine.StatePlaying
	return nil
}

func (f *fakeEngine) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = engine.StatePaused
	return nil
}

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = engine.StateStopped
	return nil
}

func (f *fakeEngine) Snapshot() engine.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.Snapshot{
		Track:  f.current,
		State:  f.state,
		Repeat: f.repeat,
	}
}

func (f *fakeEngine) Events() <-chan engine.Event {
	return f.events
}

func (f *fakeEngine) endCurrent() {
	f.mu.Lock()
	f.state = engine.StateEnded
	cur := f.current
	f.mu.Unlock()
	f.events <- engine.Event{Type: engine.EventTrackEnded, Track: cur, State: engine.StateEnded}
}

func (f *fakeEngine) loadedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.loads))
	for i, t := range f.loads {
		ids[i] = t.ID
	}
	return ids
}

func (f *fakeEngine) setRepeat(m engine.RepeatMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeat = m
}

func startCoordinator(t *testing.T, eng *fakeEngine, fetcher LyricsFetcher) (*Coordinator, *queue.Manager) {
	t.Helper()
	q := queue.NewManager()
	c := New(eng, q, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
	return c, q
}

func waitLoads(t *testing.T, eng *fakeEngine, want []string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		got := eng.loadedIDs()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond, "expected loads %v, got %v", want, eng.loadedIDs())
}

func waitCoordinatorEvent(t *testing.T, c *Coordinator, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for coordinator event %s", typ)
		}
	}
}

func TestCoordinator_RepeatTrackReloadsSameTrack(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, nil)

	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))
	eng.setRepeat(engine.RepeatTrack)

	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "A"})
	assert.Equal(t, engine.StatePlaying, eng.Snapshot().State)
}

func TestCoordinator_AdvancesThroughQueue(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, nil)

	c.Enqueue(track.Track{ID: "B"})
	c.Enqueue(track.Track{ID: "C"})
	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))

	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "B"})

	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "B", "C"})

	eng.endCurrent()
	waitCoordinatorEvent(t, c, EventPlaybackFinished)
	assert.Equal(t, []string{"A", "B", "C"}, eng.loadedIDs())
}

func TestCoordinator_RepeatQueueRestartsDrainedOrder(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, nil)
	eng.setRepeat(engine.RepeatQueue)

	c.Enqueue(track.Track{ID: "A"})
	c.Enqueue(track.Track{ID: "B"})
	require.NoError(t, c.Skip(context.Background())) // start from the queue
	waitLoads(t, eng, []string{"A"})

	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "B"}) // queue drained here

	// drained sequence restarts in original order
	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "B", "A"})

	eng.endCurrent()
	waitLoads(t, eng, []string{"A", "B", "A", "B"})
}

func TestCoordinator_ClearedQueueDoesNotRestart(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, nil)
	eng.setRepeat(engine.RepeatQueue)

	c.Enqueue(track.Track{ID: "A"})
	c.Enqueue(track.Track{ID: "B"})
	require.NoError(t, c.Skip(context.Background()))
	waitLoads(t, eng, []string{"A"})

	c.ClearQueue()
	eng.endCurrent()

	waitCoordinatorEvent(t, c, EventPlaybackFinished)
	assert.Equal(t, []string{"A"}, eng.loadedIDs(), "cleared queue must not restart")
}

func TestCoordinator_FailureDoesNotAutoAdvance(t *testing.T) {
	eng := newFakeEngine()
	c, q := startCoordinator(t, eng, nil)

	c.Enqueue(track.Track{ID: "B"})
	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))

	failed := track.Track{ID: "A"}
	eng.events <- engine.Event{
		Type:  engine.EventTrackFailed,
		Track: &failed,
		State: engine.StateFailed,
		Err:   errors.New("network stall"),
	}

	ev := waitCoordinatorEvent(t, c, EventPlaybackFailed)
	assert.Error(t, ev.Err)
	assert.Equal(t, []string{"A"}, eng.loadedIDs(), "no auto-advance on failure")
	assert.Equal(t, 1, q.Len(), "queue untouched on failure")

	// explicit retry reloads the same track
	require.NoError(t, c.Retry(context.Background()))
	waitLoads(t, eng, []string{"A", "A"})
}

func TestCoordinator_SkipWithEmptyQueueStops(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, nil)

	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))
	require.NoError(t, c.Skip(context.Background()))

	eng.mu.Lock()
	stops := eng.stops
	eng.mu.Unlock()
	assert.Equal(t, 1, stops)
}

type stubFetcher struct {
	lyr *lyrics.Track
	err error
}

func (s *stubFetcher) Fetch(_ context.Context, _ track.Track) (*lyrics.Track, error) {
	return s.lyr, s.err
}

func TestCoordinator_LyricsFetchedOnPlay(t *testing.T) {
	lyr := lyrics.ParseLRC("[00:01.00]hello")
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, &stubFetcher{lyr: lyr})

	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))

	eng.mu.Lock()
	defer eng.mu.Unlock()
	require.Len(t, eng.lyrics, 1)
	assert.Same(t, lyr, eng.lyrics[0])
}

func TestCoordinator_LyricsFailureDegradesToNoLyrics(t *testing.T) {
	eng := newFakeEngine()
	c, _ := startCoordinator(t, eng, &stubFetcher{err: errors.New("lrclib down")})

	require.NoError(t, c.PlayNow(context.Background(), track.Track{ID: "A"}))

	eng.mu.Lock()
	defer eng.mu.Unlock()
	require.Len(t, eng.lyrics, 1)
	assert.Nil(t, eng.lyrics[0])
}
