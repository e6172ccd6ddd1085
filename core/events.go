package core

import (
	"sync"
	"time"

	"github.com/ebogdum/dslockd/metrics"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than blocking lock
// operations.
const subscriberBuffer = 16

// LockEvent describes one committed lock transition. Refused operations are
// not published; they are visible in the audit trail only.
type LockEvent struct {
	Datastore string    `json:"datastore"`
	Action    string    `json:"action"` // "lock", "unlock", "force-release"
	SessionID uint32    `json:"session_id"`
	Username  string    `json:"username"`
	Time      time.Time `json:"time"`
}

// Hub fans lock events out to watch subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan LockEvent]struct{}
}

// NewHub creates an event hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan LockEvent]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel.
func (h *Hub) Subscribe() chan LockEvent {
	ch := make(chan LockEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	metrics.WatchSubscribers.Inc()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan LockEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
		metrics.WatchSubscribers.Dec()
	}
	h.mu.Unlock()
}

// Publish delivers the event to every subscriber that has buffer space.
// Publishing never blocks a lock operation.
func (h *Hub) Publish(ev LockEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is too slow; drop the event for it.
		}
	}
}
