// Package queue provides the ordered pending-track buffer.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flacterm/flacterm/internal/domain/track"
)

// Entry is a queued track with its own identity, so duplicates of the
// same track can be addressed individually.
type Entry struct {
	ID      string      // Queue entry ID (uuid)
	Track   track.Track // The queued track
	AddedAt time.Time   // Time when added to the queue
}

// Manager is an ordered pending-track buffer with FIFO semantics plus
// explicit removal. Safe for use from multiple goroutines.
type Manager struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewManager creates an empty queue.
func NewManager() *Manager {
	return &Manager{entries: make([]Entry, 0)}
}

// Enqueue appends a track and returns its queue entry ID.
// Duplicates by track identifier are permitted.
func (m *Manager) Enqueue(t track.Track) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := Entry{
		ID:      uuid.New().String(),
		Track:   t,
		AddedAt: time.Now(),
	}
	m.entries = append(m.entries, e)
	return e.ID
}

// DequeueOldest removes and returns the earliest-added track.
// ok is false when the queue is empty; that is a normal outcome, not an
// error.
func (m *Manager) DequeueOldest() (track.Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return track.Track{}, false
	}
	e := m.entries[0]
	m.entries = m.entries[1:]
	return e.Track, true
}

// PeekNext returns the earliest-added track without removing it.
func (m *Manager) PeekNext() (track.Track, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return track.Track{}, false
	}
	return m.entries[0].Track, true
}

// Remove removes the entry with the given ID. Returns false when no
// such entry exists.
func (m *Manager) Remove(entryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.ID == entryID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Move repositions the entry with the given ID to index pos, clamped to
// the queue bounds. Returns false when no such entry exists.
func (m *Manager) Move(entryID string, pos int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := -1
	for i, e := range m.entries {
		if e.ID == entryID {
			from = i
			break
		}
	}
	if from == -1 {
		return false
	}

	e := m.entries[from]
	m.entries = append(m.entries[:from], m.entries[from+1:]...)

	if pos < 0 {
		pos = 0
	}
	if pos > len(m.entries) {
		pos = len(m.entries)
	}
	m.entries = append(m.entries[:pos], append([]Entry{e}, m.entries[pos:]...)...)
	return true
}

// Clear empties the queue. Idempotent.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

// Len returns the number of queued entries.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of the queue in order, for UI display.
func (m *Manager) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
