package events

import "context"

// EventBus is the publishing/subscription contract used by feature modules.
// Publishing is fire-and-forget from the caller's point of view: a bus
// failure must never roll back the core mutation that produced the event.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error
	Close()
}
