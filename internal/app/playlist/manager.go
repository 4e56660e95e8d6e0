// Package playlist provides named track collections, independent of
// playback. Persistence is the caller's responsibility.
package playlist

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/flacterm/flacterm/internal/domain/track"
)

// ErrNotFound is returned when a playlist name was never created.
var ErrNotFound = errors.New("playlist not found")

// ErrAlreadyExists is returned when creating a playlist whose name is
// already taken.
var ErrAlreadyExists = errors.New("playlist already exists")

// Manager maps playlist names to ordered track lists. Names keep
// creation order; removing the last track does not delete the playlist.
type Manager struct {
	mu    sync.RWMutex
	order []string
	lists map[string][]track.Track
}

// NewManager creates an empty playlist collection.
func NewManager() *Manager {
	return &Manager{lists: make(map[string][]track.Track)}
}

// Create creates an empty playlist. Rejected when the name exists.
func (m *Manager) Create(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lists[name]; ok {
		return errors.Wrapf(ErrAlreadyExists, "%q", name)
	}
	m.createLocked(name)
	return nil
}

func (m *Manager) createLocked(name string) {
	m.lists[name] = make([]track.Track, 0)
	m.order = append(m.order, name)
}

// Delete removes a playlist and its tracks.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lists[name]; !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	delete(m.lists, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rename changes a playlist's name, keeping its tracks and its position
// in the creation order. The old name must exist and the new name must
// be free.
func (m *Manager) Rename(oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[oldName]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, ok := m.lists[newName]; ok {
		return errors.Wrapf(ErrAlreadyExists, "%q", newName)
	}

	m.lists[newName] = list
	delete(m.lists, oldName)
	for i, n := range m.order {
		if n == oldName {
			m.order[i] = newName
			break
		}
	}
	return nil
}

// AddToPlaylist appends a track, creating the playlist on first use of
// a new name. Duplicate tracks within a playlist are permitted.
func (m *Manager) AddToPlaylist(name string, t track.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lists[name]; !ok {
		m.createLocked(name)
	}
	m.lists[name] = append(m.lists[name], t)
}

// RemoveFromPlaylist removes the first entry matching trackID.
// A miss is a no-op, not an error; the playlist name itself must exist.
func (m *Manager) RemoveFromPlaylist(name, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	for i, t := range list {
		if t.ID == trackID {
			m.lists[name] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListPlaylists returns playlist names in creation order.
func (m *Manager) ListPlaylists() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// TracksIn returns the ordered tracks of a playlist.
func (m *Manager) TracksIn(name string) ([]track.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.lists[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	out := make([]track.Track, len(list))
	copy(out, list)
	return out, nil
}
