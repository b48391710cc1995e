package schedule

import (
	"errors"
	"time"

	"github.com/jwalitptl/barber-api/internal/clock"
)

var (
	ErrOutsideHours = errors.New("slot outside business hours")
	ErrInPast       = errors.New("slot is in the past")
)

// Guard wraps the business calendar with parsing and an optional past-slot check.
type Guard struct {
	clock      clock.Clock
	loc        *time.Location
	rejectPast bool
}

type Option func(*Guard)

// WithRejectPast makes Check refuse slots that start before the clock's current time in loc.
func WithRejectPast(c clock.Clock, loc *time.Location) Option {
	return func(g *Guard) {
		g.rejectPast = true
		g.clock = c
		if loc != nil {
			g.loc = loc
		}
	}
}

func NewGuard(opts ...Option) *Guard {
	g := &Guard{loc: time.Local}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check parses the raw strings and returns the typed slot when it is bookable.
func (g *Guard) Check(rawDate, rawTime string) (Date, TimeOfDay, error) {
	d, err := ParseDate(rawDate)
	if err != nil {
		return Date{}, TimeOfDay{}, err
	}
	t, err := ParseTime(rawTime)
	if err != nil {
		return Date{}, TimeOfDay{}, err
	}
	if !IsBookable(d, t) {
		return d, t, ErrOutsideHours
	}
	if g.rejectPast && d.In(g.loc, t).Before(g.clock.Now()) {
		return d, t, ErrInPast
	}
	return d, t, nil
}
