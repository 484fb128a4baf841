// Package pubsub fans hierarchy change notices out to observers such as
// the watch command's log tail, without a slow observer stalling the
// engine.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened to the payload's item.
type EventType string

const (
	ItemAddedEvent      EventType = "item.added"
	ItemRemovedEvent    EventType = "item.removed"
	ItemModifiedEvent   EventType = "item.modified"
	ItemReparentedEvent EventType = "item.reparented"
	PassCompletedEvent  EventType = "pass.completed"
)

// Event is one published notice. Seq increases by one per publish on a
// broker, across all event types.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Seq       uint64
	Timestamp time.Time
}

type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
