package model

import (
	"fmt"
	"time"
)

// Reservation is a booked slot. Field names on the wire follow the public API.
type Reservation struct {
	ID          int64   `db:"id" json:"id"`
	Date        string  `db:"fecha" json:"fecha"`
	Time        string  `db:"hora" json:"hora"`
	Service     string  `db:"servicio" json:"servicio"`
	ClientName  string  `db:"nombre" json:"nombre"`
	ClientPhone string  `db:"telefono" json:"telefono"`
	ClientEmail *string `db:"email" json:"email"`
}

// NewReservation holds the fields of a reservation that is about to be stored.
type NewReservation struct {
	Date        string  `db:"fecha"`
	Time        string  `db:"hora"`
	Service     string  `db:"servicio"`
	ClientName  string  `db:"nombre"`
	ClientPhone string  `db:"telefono"`
	ClientEmail *string `db:"email"`
}

func (n NewReservation) WithID(id int64) *Reservation {
	return &Reservation{
		ID:          id,
		Date:        n.Date,
		Time:        n.Time,
		Service:     n.Service,
		ClientName:  n.ClientName,
		ClientPhone: n.ClientPhone,
		ClientEmail: n.ClientEmail,
	}
}

// Slot is a booked (date, time) pair without client data.
type Slot struct {
	Date string `db:"fecha" json:"fecha"`
	Time string `db:"hora" json:"hora"`
}

// Key renders the slot as "YYYY-MM-DD-HH:MM".
func (s Slot) Key() string {
	return fmt.Sprintf("%s-%s", s.Date, s.Time)
}

// EmailOrEmpty returns the client e-mail or an empty string.
func (r *Reservation) EmailOrEmpty() string {
	if r.ClientEmail == nil {
		return ""
	}
	return *r.ClientEmail
}

// BookedEvent is published on the notification queue after a successful booking.
type BookedEvent struct {
	Reservation Reservation `json:"reservation"`
	RequestID   string      `json:"request_id,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
