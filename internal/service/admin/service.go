package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/repository"
	"github.com/jwalitptl/barber-api/pkg/logger"
)

var (
	ErrNotFound = errors.New("reservation not found")
	ErrStorage  = errors.New("reservation storage failure")
)

type Service struct {
	repo   repository.ReservationRepository
	logger *logger.Logger
}

func NewService(repo repository.ReservationRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]*model.Reservation, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list reservations")
		return nil, fmt.Errorf("%w: failed to list reservations", ErrStorage)
	}
	if rows == nil {
		rows = []*model.Reservation{}
	}
	return rows, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	removed, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		s.logger.Error(err, "failed to delete reservation", "reservation_id", id)
		return fmt.Errorf("%w: failed to delete reservation", ErrStorage)
	}
	if !removed {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	s.logger.Info("reservation deleted", "reservation_id", id)
	return nil
}
