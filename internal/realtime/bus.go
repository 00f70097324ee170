package realtime

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
)

// Handler receives the payload of a dispatched envelope. Each subscriber gets
// its own invocation; payloads are raw JSON, so handlers cannot mutate shared
// state out from under each other.
type Handler func(data json.RawMessage)

// Subscription is the capability returned by [Bus.Subscribe]. Only the holder
// of the token can cancel the registration, so one component can never
// unsubscribe another's callback by accident.
type Subscription struct {
	bus   *Bus
	event string
	id    uint64
}

// Cancel removes the registration. Cancelling twice, or cancelling a
// subscription that was never registered, is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s)
}

type busEntry struct {
	id uint64
	fn Handler
}

// Bus fans decoded envelopes out to registered subscribers by event name.
//
// Within one event name callbacks run in registration order; across different
// event names no ordering is promised. Dispatch runs on the channel read
// loop, so envelope order on the wire is dispatch order (FIFO).
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]busEntry
	nextID uint64
	logger *log.Logger
}

// NewBus creates an empty bus. The logger records isolated subscriber
// failures and may not be nil-checked away by callers that want silence; pass
// a discard logger instead.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]busEntry),
		logger: logger,
	}
}

// Subscribe registers fn under event and returns the cancellation token.
// Multiple callbacks per event are allowed; all are invoked per envelope.
func (b *Bus) Subscribe(event string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[event] = append(b.subs[event], busEntry{id: b.nextID, fn: fn})
	return &Subscription{bus: b, event: event, id: b.nextID}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.subs[s.event]
	for i, e := range entries {
		if e.id == s.id {
			b.subs[s.event] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(b.subs[s.event]) == 0 {
		delete(b.subs, s.event)
	}
}

// Dispatch delivers env.Data to every callback registered for env.Event, in
// registration order. A panicking callback is logged and skipped; it never
// prevents delivery to the remaining callbacks or crashes the ingress path.
func (b *Bus) Dispatch(env Envelope) {
	b.mu.Lock()
	entries := make([]busEntry, len(b.subs[env.Event]))
	copy(entries, b.subs[env.Event])
	b.mu.Unlock()

	for _, e := range entries {
		b.invoke(env, e)
	}
}

func (b *Bus) invoke(env Envelope, e busEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber callback panicked", "event", env.Event, "panic", r)
		}
	}()
	e.fn(env.Data)
}

// SubscriberCount reports the number of live registrations for an event.
// Used by teardown tests and the connection indicator view.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}
