package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/itsjmendez/adonde/internal/database"
)

// Manager owns one Dispatcher per signed-in user. Dispatchers are
// created lazily on first acquisition, shared across that user's open
// sockets, and torn down when the last socket releases them.
type Manager struct {
	backend Backend
	feed    database.Feed
	log     *slog.Logger
	opts    []DispatcherOption

	mu      sync.Mutex
	entries map[string]*managerEntry
}

type managerEntry struct {
	dispatcher *Dispatcher
	refs       int
}

// NewManager creates a dispatcher registry. opts apply to every
// dispatcher it creates.
func NewManager(backend Backend, feed database.Feed, log *slog.Logger, opts ...DispatcherOption) *Manager {
	return &Manager{
		backend: backend,
		feed:    feed,
		log:     log.With("component", "chat_manager"),
		opts:    opts,
		entries: make(map[string]*managerEntry),
	}
}

// Acquire returns the user's dispatcher, initializing it on first use.
// Every Acquire must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, userID string) (*Dispatcher, error) {
	m.mu.Lock()
	entry, ok := m.entries[userID]
	if !ok {
		entry = &managerEntry{dispatcher: NewDispatcher(m.backend, m.feed, m.opts...)}
		m.entries[userID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	if err := entry.dispatcher.Initialize(ctx, userID); err != nil {
		m.Release(userID)
		return nil, err
	}
	return entry.dispatcher, nil
}

// Release drops one reference. The dispatcher is cleaned up when the
// last reference goes.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	entry, ok := m.entries[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.refs--
	last := entry.refs <= 0
	if last {
		delete(m.entries, userID)
	}
	m.mu.Unlock()

	if last {
		entry.dispatcher.Cleanup()
		m.log.Debug("dispatcher released", "user_id", userID)
	}
}

// Close tears down every active dispatcher.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*managerEntry)
	m.mu.Unlock()

	for _, entry := range entries {
		entry.dispatcher.Cleanup()
	}
}
