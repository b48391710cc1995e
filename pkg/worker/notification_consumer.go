package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/barber-api/internal/email"
	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

type ConsumerConfig struct {
	Queue           string
	DeadLetterQueue string
	Wait            time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

// NotificationConsumer drains the booking queue and mails the operator.
type NotificationConsumer struct {
	broker  messaging.Broker
	email   email.Service
	config  ConsumerConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewNotificationConsumer(
	broker messaging.Broker,
	emailSvc email.Service,
	config ConsumerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*NotificationConsumer, error) {
	if config.Queue == "" {
		return nil, errors.New("queue must be set")
	}
	if config.Wait <= 0 {
		return nil, errors.New("wait must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, errors.New("retry attempts must be greater than 0")
	}

	return &NotificationConsumer{
		broker:  broker,
		email:   emailSvc,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start consumes until ctx is cancelled. Messages a previous run took but
// never finished go back on the queue first, so only one consumer may run
// per queue.
func (c *NotificationConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting notification consumer", "queue", c.config.Queue)

	if moved, err := c.broker.Requeue(ctx, c.config.Queue); err != nil {
		c.logger.Error(err, "Failed to requeue unfinished notifications")
	} else if moved > 0 {
		c.logger.Warn("Requeued unfinished notifications", "count", moved)
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("Shutting down notification consumer")
			return
		}

		payload, err := c.broker.Consume(ctx, c.config.Queue, c.config.Wait)
		switch {
		case errors.Is(err, messaging.ErrNoMessage):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error(err, "Failed to consume notification")
			sleep(ctx, c.config.RetryDelay)
			continue
		}

		c.Handle(ctx, payload)
		if err := c.broker.Ack(context.WithoutCancel(ctx), c.config.Queue, payload); err != nil {
			c.logger.Error(err, "Failed to ack notification")
		}
	}
}

// Handle delivers one queued message. Messages that still fail after the
// retries are parked on the dead-letter queue when one is configured.
func (c *NotificationConsumer) Handle(ctx context.Context, payload []byte) {
	if c.metrics != nil {
		timer := prometheus.NewTimer(c.metrics.NotificationLatency)
		defer timer.ObserveDuration()
	}

	var event model.BookedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.count("malformed")
		c.logger.Error(err, "Dropping malformed notification", "payload", string(payload))
		return
	}

	log := c.logger.WithFields(map[string]interface{}{
		"reservation_id": event.Reservation.ID,
		"request_id":     event.RequestID,
	})

	err := retry(ctx, c.config.RetryAttempts, c.config.RetryDelay, func() error {
		return c.email.SendReservation(ctx, event.Reservation)
	})
	if err == nil {
		c.count("sent")
		log.Info("Booking notification sent")
		return
	}

	c.count("failed")
	log.Error(err, "Failed to send booking notification")

	if c.config.DeadLetterQueue == "" {
		return
	}
	if dlqErr := c.broker.Publish(context.WithoutCancel(ctx), c.config.DeadLetterQueue, event); dlqErr != nil {
		log.Error(dlqErr, "Failed to park notification on dead-letter queue")
	}
}

func (c *NotificationConsumer) count(status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.QueueConsumed.WithLabelValues(status).Inc()
	if status != "malformed" {
		c.metrics.NotificationsTotal.WithLabelValues("worker", status).Inc()
	}
}

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 && !sleep(ctx, delay) {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}
	return err
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
