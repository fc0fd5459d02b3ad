package bus

import (
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventSyncStarted   EventType = "sync.started"
	EventSyncProject   EventType = "sync.project"
	EventSyncCompleted EventType = "sync.completed"
	EventSyncError     EventType = "sync.error"

	EventReportStarted   EventType = "report.started"
	EventReportCompleted EventType = "report.completed"
	EventReportError     EventType = "report.error"
)

// Event is a single event published through the bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventBus is a simple pub/sub event bus.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// New creates a new event bus.
func New() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel that receives events.
func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 100)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers (non-blocking).
func (eb *EventBus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- evt:
		default:
			// Drop if subscriber is full
		}
	}
}
