// Package library implements the user's music collection as a derived
// resource: the REST list endpoint is the source of truth, and envelopes on
// the realtime channel only invalidate it, triggering a full refetch.
//
// This is the "playlist manager" of the original client. Pushed events never
// patch the collection; the policy is last full snapshot wins, which stays
// correct without delivery or ordering guarantees across reconnects.
package library

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/charmbracelet/log"
)

// Fetcher loads the full collection for one identity. Production wires
// api.Client.ListUserMusic; tests inject doubles.
type Fetcher func(ctx context.Context, userID string) ([]models.Music, error)

// invalidationEvents is the fixed allow-list of envelope names that mean the
// collection changed for some user.
var invalidationEvents = []string{
	realtime.EventMusicCompleted,
	realtime.EventMusicDeleted,
	realtime.EventMusicRequested,
	realtime.EventMusicFailed,
	realtime.EventMusicError,
}

// Manager owns one user's music collection plus its loading/error state.
//
// With no identity or credential installed the manager is idle: empty
// collection, not loading, no error. That is distinct from a failed fetch: a
// failed fetch keeps the previous collection (stale beats empty) and raises the
// error flag.
type Manager struct {
	fetch  Fetcher
	bus    *realtime.Bus
	logger *log.Logger

	mu       sync.Mutex
	userID   string
	token    string
	musics   []models.Music
	loading  bool
	err      error
	seq      uint64
	subs     []*realtime.Subscription
	onChange func()
}

// Snapshot is a point-in-time copy of the manager's state for rendering.
type Snapshot struct {
	Musics  []models.Music
	Loading bool
	Err     error
}

// NewManager creates an idle manager. Call [Manager.SetIdentity] once a
// session exists.
func NewManager(fetch Fetcher, bus *realtime.Bus, logger *log.Logger) *Manager {
	return &Manager{fetch: fetch, bus: bus, logger: logger}
}

// OnChange registers a callback fired after every state transition (fetch
// start, fetch settle, identity change). Used by the TUI to repaint.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) notify() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetIdentity rebinds the manager to a new owner. Existing subscriptions are
// torn down before new ones are installed, so an identity switch can neither
// double-deliver nor leak another user's events. With a complete identity the
// collection is fetched immediately; otherwise the manager resets to idle.
func (m *Manager) SetIdentity(ctx context.Context, userID, token string) {
	m.mu.Lock()
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil

	m.userID = userID
	m.token = token
	m.musics = nil
	m.loading = false
	m.err = nil
	m.seq++ // orphan any in-flight fetch from the previous identity

	if userID != "" && token != "" {
		for _, event := range invalidationEvents {
			m.subs = append(m.subs, m.bus.Subscribe(event, m.handleEvent))
		}
	}
	active := m.userID != "" && m.token != ""
	m.mu.Unlock()

	m.notify()
	if active {
		m.Fetch(ctx)
	}
}

// Close tears down the manager's subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
	m.mu.Unlock()
}

// handleEvent refetches when an invalidation envelope is scoped to the bound
// identity. One matching envelope triggers exactly one fetch.
func (m *Manager) handleEvent(data json.RawMessage) {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()

	if userID == "" || realtime.OwnerOf(data) != userID {
		return
	}
	m.Fetch(context.Background())
}

// Fetch issues one full-collection read. Overlapping fetches cannot corrupt
// state: each is tagged with a sequence number and a response whose tag is no
// longer the most recently issued is discarded, so an older request's late
// response never overwrites a newer one.
func (m *Manager) Fetch(ctx context.Context) {
	m.mu.Lock()
	if m.userID == "" || m.token == "" {
		m.mu.Unlock()
		return
	}
	m.seq++
	tag := m.seq
	userID := m.userID
	m.loading = true
	m.mu.Unlock()
	m.notify()

	musics, err := m.fetch(ctx, userID)

	m.mu.Lock()
	if tag != m.seq {
		m.mu.Unlock()
		m.logger.Debug("discarding stale music list response", "tag", tag)
		return
	}
	m.loading = false
	if err != nil {
		m.err = err
	} else {
		m.err = nil
		m.musics = musics
	}
	m.mu.Unlock()
	m.notify()
}

// Snapshot returns the current collection and flags.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	musics := make([]models.Music, len(m.musics))
	copy(musics, m.musics)
	return Snapshot{Musics: musics, Loading: m.loading, Err: m.err}
}
