package syncer

import (
	"sync"
	"time"
)

// EventType tags sync notifications.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventOnline    EventType = "online"
	EventOffline   EventType = "offline"
)

// Event is pushed to subscribers during and after a sync pass.
type Event struct {
	Type    EventType                 `json:"type"`
	Message string                    `json:"message,omitempty"`
	Current int                       `json:"current,omitempty"`
	Total   int                       `json:"total,omitempty"`
	Synced  int                       `json:"synced"`
	Errors  int                       `json:"errors"`
	Details map[string]CategoryResult `json:"details,omitempty"`
	Time    time.Time                 `json:"time"`
}

const subscriberBuffer = 32

// broadcaster fans events out without ever blocking the sync pass;
// a subscriber that falls behind loses events.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
