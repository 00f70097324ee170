// Package feed keeps the user's notification history fresh, following the
// same derived-resource policy as the music library: pushed envelopes only
// invalidate, REST reads replace the whole snapshot.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/charmbracelet/log"
)

// Fetcher loads the feed; production wires api.Client.Notifications.
type Fetcher func(ctx context.Context) (*api.NotificationList, error)

// Marker marks one entry read; production wires api.Client.MarkNotificationRead.
type Marker func(ctx context.Context, id string) error

// refreshEvents lists the envelopes that can grow the feed: an explicit new
// notification, or a terminal generation event whose history entry the
// backend writes at the same moment.
var refreshEvents = []string{
	realtime.EventNewNotification,
	realtime.EventMusicCompleted,
	realtime.EventMusicFailed,
	realtime.EventMusicError,
}

// Feed owns the notification list and unread count for the active session.
type Feed struct {
	fetch  Fetcher
	mark   Marker
	bus    *realtime.Bus
	logger *log.Logger

	mu       sync.Mutex
	active   bool
	entries  []models.Notification
	unread   int
	loading  bool
	err      error
	seq      uint64
	subs     []*realtime.Subscription
	onChange func()
}

// Snapshot is a render-ready copy of the feed state.
type Snapshot struct {
	Notifications []models.Notification
	UnreadCount   int
	Loading       bool
	Err           error
}

// New creates an inactive feed. Call [Feed.Activate] once a session exists.
func New(fetch Fetcher, mark Marker, bus *realtime.Bus, logger *log.Logger) *Feed {
	return &Feed{fetch: fetch, mark: mark, bus: bus, logger: logger}
}

// OnChange registers a repaint callback.
func (f *Feed) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

func (f *Feed) notify() {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Activate subscribes to the refresh events and loads the initial snapshot.
// Activating twice rebinds cleanly, like an identity change on the library.
func (f *Feed) Activate(ctx context.Context) {
	f.mu.Lock()
	for _, sub := range f.subs {
		sub.Cancel()
	}
	f.subs = nil
	f.active = true
	f.entries = nil
	f.unread = 0
	f.err = nil
	f.seq++
	for _, event := range refreshEvents {
		f.subs = append(f.subs, f.bus.Subscribe(event, f.handleEvent))
	}
	f.mu.Unlock()

	f.Refresh(ctx)
}

// Deactivate tears down subscriptions and clears the feed; used at logout.
func (f *Feed) Deactivate() {
	f.mu.Lock()
	for _, sub := range f.subs {
		sub.Cancel()
	}
	f.subs = nil
	f.active = false
	f.entries = nil
	f.unread = 0
	f.loading = false
	f.err = nil
	f.seq++
	f.mu.Unlock()
	f.notify()
}

func (f *Feed) handleEvent(json.RawMessage) {
	// The notifications endpoint is already scoped by the credential, so no
	// per-payload owner filtering is needed here.
	f.Refresh(context.Background())
}

// Refresh issues one feed read with the same stale-discard rule as the
// library manager.
func (f *Feed) Refresh(ctx context.Context) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.seq++
	tag := f.seq
	f.loading = true
	f.mu.Unlock()
	f.notify()

	list, err := f.fetch(ctx)

	f.mu.Lock()
	if tag != f.seq {
		f.mu.Unlock()
		f.logger.Debug("discarding stale notification response", "tag", tag)
		return
	}
	f.loading = false
	if err != nil {
		f.err = err
	} else {
		f.err = nil
		f.entries = list.Notifications
		f.unread = list.UnreadCount
	}
	f.mu.Unlock()
	f.notify()
}

// MarkRead marks one entry read on the backend, then refreshes so the unread
// count reflects the server's view rather than a local guess.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	if err := f.mark(ctx, id); err != nil {
		return err
	}
	f.Refresh(ctx)
	return nil
}

// Snapshot returns the current feed state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]models.Notification, len(f.entries))
	copy(entries, f.entries)
	return Snapshot{Notifications: entries, UnreadCount: f.unread, Loading: f.loading, Err: f.err}
}
