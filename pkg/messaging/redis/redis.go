package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/barber-api/pkg/circuitbreaker"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

// RedisBroker implements messaging.Broker on Redis lists. Publish LPUSHes,
// Consume BLMOVEs into <queue>:processing and Ack LREMs from there, so a
// message is only gone once its worker is done with it.
type RedisBroker struct {
	client  *redis.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

var _ messaging.Broker = (*RedisBroker)(nil)

func NewRedisBroker(ctx context.Context, config Config, log *logger.Logger, m *metrics.Metrics) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.RetryBackoff > 0 {
		opts.MinRetryBackoff = config.RetryBackoff
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-broker",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
	}, log)

	return &RedisBroker{
		client:  client,
		cb:      cb,
		logger:  log,
		metrics: m,
	}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, queue string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	start := time.Now()
	err = b.cb.Execute(func() error {
		return b.client.LPush(ctx, queue, payload).Err()
	})
	b.observe("lpush", start, err)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// Consume blocks up to wait for the oldest message on queue and parks it
// on the processing list until Ack.
func (b *RedisBroker) Consume(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	start := time.Now()
	res, err := b.client.BLMove(ctx, queue, ProcessingKey(queue), "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, messaging.ErrNoMessage
	}
	b.observe("blmove", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}
	return []byte(res), nil
}

func (b *RedisBroker) Ack(ctx context.Context, queue string, payload []byte) error {
	start := time.Now()
	err := b.cb.Execute(func() error {
		return b.client.LRem(ctx, ProcessingKey(queue), 1, payload).Err()
	})
	b.observe("lrem", start, err)
	if err != nil {
		return fmt.Errorf("failed to ack on %s: %w", queue, err)
	}
	return nil
}

// Requeue moves every unacknowledged message back onto queue, oldest
// first in line, and reports how many it moved.
func (b *RedisBroker) Requeue(ctx context.Context, queue string) (int, error) {
	moved := 0
	for {
		start := time.Now()
		err := b.client.LMove(ctx, ProcessingKey(queue), queue, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		b.observe("lmove", start, err)
		if err != nil {
			return moved, fmt.Errorf("failed to requeue %s: %w", queue, err)
		}
		moved++
	}
}

// ProcessingKey names the list holding queue's in-flight messages.
func ProcessingKey(queue string) string {
	return queue + ":processing"
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) observe(op string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	b.metrics.RedisLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	b.metrics.RedisOperations.WithLabelValues(op, metrics.Status(err)).Inc()
}
