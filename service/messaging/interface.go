// Package messaging defines the queue abstraction used to fan out approval
// and audit events to consumers running outside the orchestrator.
package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by queues configured to drop instead of block.
var ErrQueueFull = errors.New("queue is full")

// Queue carries events of type T from a producer, such as the approval
// service, to listeners such as audit sinks.
type Queue[T any] interface {
	Publish(ctx context.Context, t *T) error
	// Consume blocks until an event arrives or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a delivery that must be settled exactly once: Ack when the
// listener handled the event, Nack to have it redelivered.
type Message[T any] interface {
	T() *T
	Ack() error
	Nack(err error) error
}
