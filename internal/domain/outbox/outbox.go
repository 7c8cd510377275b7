package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Keyed events name the aggregate they belong to; relays use it as the partition key.
type Keyed interface {
	Event
	AggregateID() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// KeyOf returns the aggregate id of keyed events and the event name otherwise.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok && k.AggregateID() != "" {
		return k.AggregateID()
	}
	return e.EventName()
}
