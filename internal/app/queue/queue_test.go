package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flacterm/flacterm/internal/domain/track"
)

func TestManager_FIFO(t *testing.T) {
	m := NewManager()

	m.Enqueue(track.Track{ID: "A"})
	m.Enqueue(track.Track{ID: "B"})

	got, ok := m.DequeueOldest()
	require.True(t, ok)
	assert.Equal(t, "A", got.ID)

	got, ok = m.DequeueOldest()
	require.True(t, ok)
	assert.Equal(t, "B", got.ID)

	_, ok = m.DequeueOldest()
	assert.False(t, ok, "empty queue is a normal outcome")
}

func TestManager_PeekNext(t *testing.T) {
	m := NewManager()

	_, ok := m.PeekNext()
	assert.False(t, ok)

	m.Enqueue(track.Track{ID: "A"})
	m.Enqueue(track.Track{ID: "B"})

	got, ok := m.PeekNext()
	require.True(t, ok)
	assert.Equal(t, "A", got.ID)
	assert.Equal(t, 2, m.Len(), "peek must not remove")
}

func TestManager_DuplicatesPermitted(t *testing.T) {
	m := NewManager()

	id1 := m.Enqueue(track.Track{ID: "A"})
	id2 := m.Enqueue(track.Track{ID: "A"})

	assert.NotEqual(t, id1, id2, "entries need distinct identity")
	assert.Equal(t, 2, m.Len())
}

func TestManager_Remove(t *testing.T) {
	m := NewManager()

	m.Enqueue(track.Track{ID: "A"})
	idB := m.Enqueue(track.Track{ID: "B"})
	m.Enqueue(track.Track{ID: "C"})

	assert.True(t, m.Remove(idB))
	assert.False(t, m.Remove(idB), "second removal misses")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Track.ID)
	assert.Equal(t, "C", entries[1].Track.ID)
}

func TestManager_Move(t *testing.T) {
	m := NewManager()

	m.Enqueue(track.Track{ID: "A"})
	m.Enqueue(track.Track{ID: "B"})
	idC := m.Enqueue(track.Track{ID: "C"})

	require.True(t, m.Move(idC, 0))
	assertOrder(t, m, "C", "A", "B")

	// move towards the back
	require.True(t, m.Move(idC, 2))
	assertOrder(t, m, "A", "B", "C")

	// positions clamp to the queue bounds
	require.True(t, m.Move(idC, -5))
	assertOrder(t, m, "C", "A", "B")
	require.True(t, m.Move(idC, 99))
	assertOrder(t, m, "A", "B", "C")

	assert.False(t, m.Move("no-such-entry", 0))
	assertOrder(t, m, "A", "B", "C")
}

func assertOrder(t *testing.T, m *Manager, want ...string) {
	t.Helper()
	entries := m.Entries()
	require.Len(t, entries, len(want))
	for i, id := range want {
		assert.Equal(t, id, entries[i].Track.ID, "position %d", i)
	}
}

func TestManager_Clear(t *testing.T) {
	m := NewManager()

	m.Enqueue(track.Track{ID: "A"})
	m.Clear()
	assert.Equal(t, 0, m.Len())

	// idempotent
	m.Clear()
	assert.Equal(t, 0, m.Len())
}
