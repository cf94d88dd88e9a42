package transcript

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements Store using an in-memory map.
type Memory struct {
	// mu guards the session map
	mu sync.RWMutex

	// sessions maps a session id to its entries in insertion order
	sessions map[string][]Entry
}

// NewMemory creates an empty in-memory transcript store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string][]Entry),
	}
}

// Append records an entry at the end of a session's transcript. A zero
// timestamp is stamped with the current time.
func (m *Memory) Append(_ context.Context, sessionID string, entry Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = append(m.sessions[sessionID], entry)
	return nil
}

// History returns a copy of a session's entries in insertion order.
func (m *Memory) History(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound{SessionID: sessionID}
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Clear drops all entries for a session. Clearing an unknown session is
// a no-op.
func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// Sessions returns the ids of all sessions with at least one entry,
// sorted for stable output.
func (m *Memory) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the store's memory.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string][]Entry)
	return nil
}
