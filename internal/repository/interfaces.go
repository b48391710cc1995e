package repository

import (
	"context"
	"errors"

	"github.com/jwalitptl/barber-api/internal/model"
)

var (
	// ErrConflict is returned by Insert when the (fecha, hora) slot already holds a reservation.
	ErrConflict = errors.New("slot already reserved")
	// ErrValidation is returned by Insert when a required column would be empty.
	ErrValidation = errors.New("required reservation field is empty")
)

type ReservationRepository interface {
	ListSlots(ctx context.Context) ([]model.Slot, error)
	// ListAll returns every reservation ordered by fecha, hora ascending.
	ListAll(ctx context.Context) ([]*model.Reservation, error)
	Insert(ctx context.Context, r model.NewReservation) (int64, error)
	// DeleteByID reports whether a row was removed. A missing id is not an error.
	DeleteByID(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
}
