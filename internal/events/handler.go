// internal/events/handler.go
package events

import (
	"context"
)

// AllTypes lists every event type the protocol publishes.
var AllTypes = []EventType{
	TokenCreated,
	TradeExecuted,
	TokenMigrated,
	MigrationFailed,
	TokenPaused,
	TokenUnpaused,
	ConfigChanged,
}

// Handler processes events of a specific type.
type Handler interface {
	// Handle runs on the bus dispatch goroutine and must not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscriber is the consumer side of the bus.
type Subscriber interface {
	Subscribe(eventType EventType, handler Handler) Subscription
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

// SubscribeMany registers handler for each of eventTypes and returns a
// single subscription covering all of them.
func SubscribeMany(bus Subscriber, handler Handler, eventTypes ...EventType) Subscription {
	group := make(subscriptionGroup, 0, len(eventTypes))
	for _, t := range eventTypes {
		group = append(group, bus.Subscribe(t, handler))
	}
	return group
}

type subscriptionGroup []Subscription

func (g subscriptionGroup) Unsubscribe() {
	for _, sub := range g {
		sub.Unsubscribe()
	}
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
