package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/hybrid/service/messaging"
)

type stageEvent struct {
	RunID string
	Name  string
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[stageEvent](DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &stageEvent{RunID: "r1", Name: "planning"}))
	require.NoError(t, queue.Publish(ctx, &stageEvent{RunID: "r1", Name: "execution"}))
	assert.Equal(t, 2, queue.Size())

	for _, expect := range []string{"planning", "execution"} {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, expect, message.T().Name)
		require.NoError(t, message.Ack())
		assert.Error(t, message.Ack())
	}
	assert.Equal(t, 0, queue.Size())
	assert.Error(t, queue.Publish(ctx, nil))
}

func TestQueue_RetryAndDeadLetter(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	queue := NewQueue[stageEvent](config)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &stageEvent{RunID: "r2", Name: "verification"}))
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		require.NoError(t, message.Nack(errors.New("sink unavailable")))
	}
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "r2", queue.DeadLetters()[0].RunID)
	failures := queue.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, config.MaxRetries+1, failures[0].Attempts)
	assert.EqualError(t, failures[0].Err, "sink unavailable")
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_DropWhenFull(t *testing.T) {
	queue := NewQueue[stageEvent](Config{QueueBuffer: 1, DropWhenFull: true})
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &stageEvent{Name: "a"}))
	assert.ErrorIs(t, queue.Publish(ctx, &stageEvent{Name: "b"}), messaging.ErrQueueFull)
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[stageEvent](Config{QueueBuffer: 1})
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(cancelled, &stageEvent{}))

	timeout, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, queue.Publish(context.Background(), &stageEvent{}))
	blocked, cancelBlocked := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelBlocked()
	assert.ErrorIs(t, queue.Publish(blocked, &stageEvent{}), context.DeadlineExceeded)
}

func TestQueue_Concurrency(t *testing.T) {
	queue := NewQueue[stageEvent](DefaultConfig())
	ctx := context.Background()
	producers, perProducer := 10, 10

	var consumed sync.Map
	wg := sync.WaitGroup{}
	for i := 0; i < producers; i++ {
		wg.Add(2)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &stageEvent{RunID: fmt.Sprintf("r%d-%d", producer, j)}))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				consumed.Store(message.T().RunID, true)
				assert.NoError(t, message.Ack())
			}
		}()
	}
	wg.Wait()
	count := 0
	consumed.Range(func(_, _ interface{}) bool { count++; return true })
	assert.Equal(t, producers*perProducer, count)
}
