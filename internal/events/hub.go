package events

import (
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// Kind identifies a supervisor notification.
type Kind string

const (
	// KindStarted is published once a server has bound its socket.
	KindStarted Kind = "started"

	// KindStopped is published once a server has been shut down.
	KindStopped Kind = "stopped"

	// KindError is published when a start or stop command fails.
	KindError Kind = "error"
)

// Event is a single supervisor notification.
type Event struct {
	// CommandID correlates the event with the start/stop command that produced it.
	CommandID string `json:"command_id"`

	// Kind is the notification type.
	Kind Kind `json:"kind"`

	// URL is set for [KindStarted].
	URL string `json:"url,omitempty"`

	// Message is set for [KindError].
	Message string `json:"message,omitempty"`

	// At is when the event was published.
	At time.Time `json:"at"`
}

// Hub fans out events to subscribers.
//
// Delivery is non-blocking: a subscriber whose buffer is full misses the
// event rather than stalling the publisher. Hub is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	last   *Event
	closed bool

	subMu       sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewHub creates an empty [Hub].
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Publish records ev as the latest event and sends it to every subscriber.
// A zero At is filled with the current time. Publishing after [Hub.Close]
// only updates Last.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	h.last = &ev
	h.mu.Unlock()

	h.subMu.RLock()
	defer h.subMu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
}

// Last returns the most recently published event.
func (h *Hub) Last() (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

// Subscribe returns a buffered channel that receives future events.
// Callers must call [Hub.Unsubscribe] when done. After [Hub.Close] the
// returned channel is already closed.
func (h *Hub) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes ch. Unknown or already removed channels
// are ignored.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for subCh := range h.subscribers {
		if subCh == ch {
			delete(h.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
