package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Feed fans bug events out to every connected subscriber.
//
// Subscribe/Unsubscribe are safe under concurrent Broadcast. Broadcast never
// blocks: a subscriber whose queue is full misses the event.
type Feed struct {
	log *slog.Logger
	now func() time.Time

	mu          sync.RWMutex
	subscribers map[string]*Client
}

// NewFeed constructs an empty Feed.
func NewFeed(log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[string]*Client),
	}
}

// Subscribe registers client.
func (f *Feed) Subscribe(client *Client) {
	if f == nil || client == nil || client.SessionID == "" {
		return
	}

	f.mu.Lock()
	f.subscribers[client.SessionID] = client
	n := len(f.subscribers)
	f.mu.Unlock()

	subscribersGauge.Set(float64(n))
	f.log.Debug("feed.subscribe", "session_id", client.SessionID, "subscribers", n)
}

// Unsubscribe removes the session and then closes its client, so no
// broadcaster still holds the pointer while it tears down.
func (f *Feed) Unsubscribe(sessionID string) {
	if f == nil || sessionID == "" {
		return
	}

	f.mu.Lock()
	cl := f.subscribers[sessionID]
	delete(f.subscribers, sessionID)
	n := len(f.subscribers)
	f.mu.Unlock()

	if cl != nil {
		cl.Close()
	}
	subscribersGauge.Set(float64(n))
	f.log.Debug("feed.unsubscribe", "session_id", sessionID, "subscribers", n)
}

// Subscribers returns the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Broadcast wraps payload in an envelope of type typ and offers it to every
// subscriber. It reports how many subscribers received it.
func (f *Feed) Broadcast(typ string, payload any) int {
	if f == nil {
		return 0
	}

	env, err := NewEnvelope(typ, payload, f.now())
	if err != nil {
		f.log.Error("feed.envelope.fail", "type", typ, "err", err)
		return 0
	}
	return f.Publish(env)
}

// Publish offers a prebuilt envelope to every subscriber.
func (f *Feed) Publish(env Envelope) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for _, c := range f.subscribers {
		if c.offer(env) {
			delivered++
			continue
		}
		droppedEvents.WithLabelValues(env.Type).Inc()
	}
	publishedEvents.WithLabelValues(env.Type).Inc()
	return delivered
}
