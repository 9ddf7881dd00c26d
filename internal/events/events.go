package events

import (
	"sync"
	"time"

	"tollgate/internal/models"
)

// Type enumerates engine notification kinds.
type Type string

const (
	TypeStateChange     Type = "state_change"
	TypeOverrideSet     Type = "override_set"
	TypeOverrideCleared Type = "override_cleared"
	TypeError           Type = "error"
)

// Event is a lightweight engine notification.
type Event struct {
	Type        Type
	ConditionID string
	Status      *models.ComputedStatus // set for state changes
	Mode        models.OverrideMode    // set when an override is applied
	Err         error                  // set for error events
	At          time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for engine notifications.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
