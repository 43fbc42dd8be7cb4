package event

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/playground/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Stats holds bus counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerPanics uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.WithComponent("bus")
		}
	}
}

// Bus is a simple synchronous pub-sub event bus.
// It allows components to communicate without direct dependencies.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	logger        *logging.Logger

	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerPanics atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeMany registers one handler for several event types.
// The returned IDs are in the same order as eventTypes.
func (b *Bus) SubscribeMany(eventTypes []string, handler Handler) []string {
	ids := make([]string, 0, len(eventTypes))
	for _, t := range eventTypes {
		ids = append(ids, b.Subscribe(t, handler))
	}
	return ids
}

// SubscribeAll registers a handler for all event types.
// The handler will be called for every published event.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(topicWildcard, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				// Copy rather than re-slice so snapshots held by an in-flight
				// Publish keep their view.
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				next = append(next, subs[i+1:]...)
				b.subscriptions[eventType] = next
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers.
// Specific handlers (subscribed to this event type) are called first,
// followed by wildcard handlers (subscribed via SubscribeAll).
// Within each group, handlers are called in registration order.
//
// No lock is held while handlers run, so a handler may publish again; the
// nested publish completes before the outer one moves to its next handler.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()

	specificSubs := make([]subscription, len(b.subscriptions[eventType]))
	copy(specificSubs, b.subscriptions[eventType])

	wildcardSubs := make([]subscription, len(b.subscriptions[topicWildcard]))
	copy(wildcardSubs, b.subscriptions[topicWildcard])

	b.mu.RUnlock()

	b.published.Add(1)

	for _, sub := range specificSubs {
		b.safeCall(sub, event)
	}
	for _, sub := range wildcardSubs {
		b.safeCall(sub, event)
	}
}

// safeCall invokes a handler and recovers from any panics.
func (b *Bus) safeCall(sub subscription, event Event) {
	b.delivered.Add(1)
	recovered := panics.Try(func() { sub.handler(event) })
	if recovered == nil {
		return
	}

	b.handlerPanics.Add(1)
	b.logger.Error("event handler panicked",
		"event_type", event.EventType(),
		"subscription", sub.id,
		"panic", fmt.Sprint(recovered.Value),
		"stack", string(recovered.Stack),
	)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerPanics: b.handlerPanics.Load(),
	}
}
