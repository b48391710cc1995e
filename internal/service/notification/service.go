package notification

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jwalitptl/barber-api/internal/email"
	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/service/booking"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

const (
	ModeDirect = "direct"
	ModeQueue  = "queue"
	ModeOff    = "off"

	DefaultQueue = "turnos:notifications"
)

type Config struct {
	Mode    string
	Timeout time.Duration
	Queue   string
}

// Service delivers booking notices on detached goroutines. Nothing it does
// reaches the booking caller; failures and panics end in the log.
type Service struct {
	cfg     Config
	email   email.Service
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

var _ booking.Notifier = (*Service)(nil)

func NewService(cfg Config, emailSvc email.Service, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) (*Service, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}

	switch cfg.Mode {
	case ModeDirect:
		if emailSvc == nil {
			return nil, fmt.Errorf("notification mode %q needs an email service", cfg.Mode)
		}
	case ModeQueue:
		if broker == nil {
			return nil, fmt.Errorf("notification mode %q needs a broker", cfg.Mode)
		}
	case ModeOff:
	default:
		return nil, fmt.Errorf("unknown notification mode %q", cfg.Mode)
	}

	return &Service{
		cfg:     cfg,
		email:   emailSvc,
		broker:  broker,
		logger:  log,
		metrics: m,
	}, nil
}

// ReservationBooked returns at once. Delivery runs on a context that keeps the
// request values but not its cancellation, bounded by the configured timeout.
func (s *Service) ReservationBooked(ctx context.Context, r model.Reservation) {
	if s.cfg.Mode == ModeOff {
		return
	}

	s.wg.Add(1)
	go s.process(context.WithoutCancel(ctx), r)
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) process(ctx context.Context, r model.Reservation) {
	defer s.wg.Done()

	log := s.logger.WithContext(ctx)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			s.count("panic")
			log.Error(fmt.Errorf("panic: %v", p), "notification panicked",
				"reservation_id", r.ID,
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var err error
	switch s.cfg.Mode {
	case ModeDirect:
		err = s.email.SendReservation(ctx, r)
	case ModeQueue:
		err = s.broker.Publish(ctx, s.cfg.Queue, model.BookedEvent{
			Reservation: r,
			RequestID:   logger.RequestIDFromContext(ctx),
			OccurredAt:  start.UTC(),
		})
	}

	if s.metrics != nil {
		s.metrics.NotificationLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.count("failed")
		log.Error(err, "failed to deliver booking notification",
			"reservation_id", r.ID,
			"mode", s.cfg.Mode,
		)
		return
	}

	s.count("sent")
	log.Info("booking notification delivered",
		"reservation_id", r.ID,
		"mode", s.cfg.Mode,
	)
}

func (s *Service) count(status string) {
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(s.cfg.Mode, status).Inc()
	}
}
