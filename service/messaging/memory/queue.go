// Package memory provides an in-process messaging.Queue backed by a buffered
// channel. Audit and approval events use it when no external broker is wired.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/internal/idgen"
	"github.com/viant/hybrid/service/messaging"
)

// Config controls buffering and redelivery.
type Config struct {
	// MaxRetries is the number of redeliveries after the first Nack.
	MaxRetries int           `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelay time.Duration `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"`
	// DeadLetter keeps payloads that ran out of retries for inspection.
	DeadLetter  bool `json:"deadLetter,omitempty" yaml:"deadLetter,omitempty"`
	QueueBuffer int  `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
	// DropWhenFull makes Publish fail with messaging.ErrQueueFull instead of
	// blocking when the buffer is exhausted.
	DropWhenFull bool `json:"dropWhenFull,omitempty" yaml:"dropWhenFull,omitempty"`
}

// DefaultConfig keeps a hundred events and retries a failed sink three times.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

// DeadLetter is a payload whose delivery failed on every attempt.
type DeadLetter[T any] struct {
	ID       string
	Payload  T
	Attempts int
	Err      error
	FailedAt time.Time
}

type delivery[T any] struct {
	id      string
	payload T
	attempt int
	queue   *Queue[T]
	mu      sync.Mutex
	settled bool
}

func (d *delivery[T]) T() *T { return &d.payload }

func (d *delivery[T]) ID() string { return d.id }

// Ack settles the delivery.
func (d *delivery[T]) Ack() error {
	return d.settle(nil, false)
}

// Nack schedules a redelivery or dead-letters the payload once MaxRetries is spent.
func (d *delivery[T]) Nack(err error) error {
	return d.settle(err, true)
}

func (d *delivery[T]) settle(err error, failed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return fmt.Errorf("delivery %v was already settled", d.id)
	}
	d.settled = true
	if failed {
		d.queue.redeliver(d, err)
	}
	return nil
}

// Queue is a channel-backed messaging.Queue.
type Queue[T any] struct {
	config   Config
	pending  chan *delivery[T]
	mux      sync.Mutex
	failures []*DeadLetter[T]
}

// NewQueue creates a queue; a non-positive buffer falls back to the default.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{config: config, pending: make(chan *delivery[T], config.QueueBuffer)}
}

// Publish enqueues a copy of t.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("cannot publish nil payload")
	}
	item := &delivery[T]{id: idgen.New(), payload: *t, queue: q}
	if q.config.DropWhenFull {
		select {
		case q.pending <- item:
			return nil
		default:
			return messaging.ErrQueueFull
		}
	}
	select {
	case q.pending <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume waits for the next delivery.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case item := <-q.pending:
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue[T]) redeliver(item *delivery[T], err error) {
	attempt := item.attempt + 1
	if attempt <= q.config.MaxRetries {
		next := &delivery[T]{id: item.id, payload: item.payload, attempt: attempt, queue: q}
		time.AfterFunc(q.config.RetryDelay, func() { q.pending <- next })
		return
	}
	if !q.config.DeadLetter {
		return
	}
	q.mux.Lock()
	q.failures = append(q.failures, &DeadLetter[T]{
		ID:       item.id,
		Payload:  item.payload,
		Attempts: attempt,
		Err:      err,
		FailedAt: clock.Now(),
	})
	q.mux.Unlock()
}

// Size returns the number of deliveries waiting to be consumed.
func (q *Queue[T]) Size() int {
	return len(q.pending)
}

// DLQSize returns the number of dead letters.
func (q *Queue[T]) DLQSize() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.failures)
}

// DeadLetters returns the payloads that exhausted their retries.
func (q *Queue[T]) DeadLetters() []*T {
	q.mux.Lock()
	defer q.mux.Unlock()
	ret := make([]*T, len(q.failures))
	for i, failure := range q.failures {
		ret[i] = &failure.Payload
	}
	return ret
}

// Failures returns dead letters with their last error and attempt count.
func (q *Queue[T]) Failures() []DeadLetter[T] {
	q.mux.Lock()
	defer q.mux.Unlock()
	ret := make([]DeadLetter[T], len(q.failures))
	for i, failure := range q.failures {
		ret[i] = *failure
	}
	return ret
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
