package audit

import (
	"context"
	"errors"
	"log"

	"github.com/viant/hybrid/service/messaging"
)

// Queue publishes events to a messaging queue so that a slow sink never
// delays a run. Pair it with a Listener draining into the durable sink.
type Queue struct {
	queue messaging.Queue[Event]
}

// NewQueue creates a queue sink.
func NewQueue(queue messaging.Queue[Event]) *Queue {
	return &Queue{queue: queue}
}

// Record publishes a copy of event.
func (q *Queue) Record(ctx context.Context, event *Event) error {
	copied := *event
	return q.queue.Publish(ctx, &copied)
}

// Listener consumes a queue and forwards events to a sink.
type Listener struct {
	queue  messaging.Queue[Event]
	sink   Sink
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a listener draining queue into sink.
func NewListener(queue messaging.Queue[Event], sink Sink) *Listener {
	return &Listener{queue: queue, sink: sink}
}

// Start consumes in the background until Stop is called or ctx is done.
// Events the sink fails to record are negatively acknowledged for retry.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		for {
			msg, err := l.queue.Consume(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Printf("audit: failed to consume event: %v", err)
				continue
			}
			if err = l.sink.Record(ctx, msg.T()); err != nil {
				log.Printf("audit: failed to record event %v/%v: %v", msg.T().RunID, msg.T().Name, err)
				_ = msg.Nack(err)
				continue
			}
			_ = msg.Ack()
		}
	}()
}

// Stop ends consumption and waits for the listener goroutine.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}
