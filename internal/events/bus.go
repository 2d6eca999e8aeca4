package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(EPOEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceStatusEvent:
		event.Publish(b.dispatcher, e)
	case EPOEvent:
		event.Publish(b.dispatcher, e)
	case CommandEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceStatusEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EPOEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommandEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
