package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrNoMessage is returned by Consume when the wait timed out on an empty queue.
var ErrNoMessage = errors.New("no message available")

// Broker moves JSON messages through named work queues. Each message is
// delivered to exactly one consumer.
//
// A consumed message stays on the queue's processing list until it is
// acknowledged. Requeue puts unacknowledged messages back, which is safe
// only while no other consumer of the queue is running.
type Broker interface {
	Publish(ctx context.Context, queue string, message interface{}) error
	Consume(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
	Ack(ctx context.Context, queue string, payload []byte) error
	Requeue(ctx context.Context, queue string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
