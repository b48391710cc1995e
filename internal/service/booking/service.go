package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/repository"
	"github.com/jwalitptl/barber-api/internal/schedule"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

var (
	ErrMissingFields = errors.New("missing required booking fields")
	ErrInvalidSlot   = errors.New("requested slot is not bookable")
	ErrSlotTaken     = errors.New("requested slot is already taken")
	ErrStorage       = errors.New("reservation storage failure")
)

// Notifier is told about every stored reservation. It must return immediately;
// delivery happens on its own goroutine and never reports back.
type Notifier interface {
	ReservationBooked(ctx context.Context, r model.Reservation)
}

type BookInput struct {
	Date        string
	Time        string
	Service     string
	ClientName  string
	ClientPhone string
	ClientEmail *string
}

type Service struct {
	repo     repository.ReservationRepository
	guard    *schedule.Guard
	notifier Notifier
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.ReservationRepository,
	guard *schedule.Guard,
	notifier Notifier,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Book validates the request, stores it and fires the notification.
// A lost race for the slot surfaces as ErrSlotTaken and is never retried.
func (s *Service) Book(ctx context.Context, in BookInput) (*model.Reservation, error) {
	in = normalize(in)
	if in.Date == "" || in.Time == "" || in.Service == "" || in.ClientName == "" || in.ClientPhone == "" {
		s.outcome("missing_fields")
		return nil, ErrMissingFields
	}

	date, tod, err := s.guard.Check(in.Date, in.Time)
	if err != nil {
		s.outcome("invalid_slot")
		return nil, fmt.Errorf("%w: %w", ErrInvalidSlot, err)
	}

	nr := model.NewReservation{
		Date:        date.String(),
		Time:        tod.String(),
		Service:     in.Service,
		ClientName:  in.ClientName,
		ClientPhone: in.ClientPhone,
		ClientEmail: in.ClientEmail,
	}

	id, err := s.repo.Insert(ctx, nr)
	switch {
	case errors.Is(err, repository.ErrConflict):
		s.outcome("taken")
		return nil, fmt.Errorf("%w: %s %s", ErrSlotTaken, nr.Date, nr.Time)
	case errors.Is(err, repository.ErrValidation):
		// normalize already rejected blanks, so reaching this means the store and service disagree
		s.outcome("missing_fields")
		return nil, ErrMissingFields
	case err != nil:
		s.outcome("error")
		s.logger.Error(err, "failed to insert reservation", "fecha", nr.Date, "hora", nr.Time)
		return nil, fmt.Errorf("%w: failed to insert reservation", ErrStorage)
	}

	created := nr.WithID(id)
	s.outcome("created")
	s.logger.Info("reservation created",
		"reservation_id", id,
		"fecha", created.Date,
		"hora", created.Time,
	)

	if s.notifier != nil {
		s.notifier.ReservationBooked(ctx, *created)
	}
	return created, nil
}

// ReservedSlots lists booked slots as "YYYY-MM-DD-HH:MM" keys.
func (s *Service) ReservedSlots(ctx context.Context) ([]string, error) {
	slots, err := s.repo.ListSlots(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list reserved slots")
		return nil, fmt.Errorf("%w: failed to list slots", ErrStorage)
	}

	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, slot.Key())
	}
	return keys, nil
}

func (s *Service) outcome(label string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(label).Inc()
	}
}

func normalize(in BookInput) BookInput {
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Service = strings.TrimSpace(in.Service)
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	if in.ClientEmail != nil {
		email := strings.TrimSpace(*in.ClientEmail)
		if email == "" {
			in.ClientEmail = nil
		} else {
			in.ClientEmail = &email
		}
	}
	return in
}
