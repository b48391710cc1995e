// Package schedule decides which (date, time) pairs are legal business slots.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	ErrBadDate = errors.New("invalid date")
	ErrBadTime = errors.New("invalid time")
)

// Date is a calendar date without a time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday is computed on a UTC midnight anchor so the result never depends on the process zone.
func (d Date) Weekday() time.Weekday {
	return d.midnight(time.UTC).Weekday()
}

func (d Date) In(loc *time.Location, t TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (d Date) midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay is an hour and minute on the 24h clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTime parses "HH:MM". A single-digit hour is accepted.
func ParseTime(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Window is an opening range of whole hours, [Open, Close).
type Window struct {
	Open  int
	Close int
}

func (w Window) contains(hour int) bool {
	return hour >= w.Open && hour < w.Close
}

var weekdayWindow = Window{Open: 13, Close: 19}

var windows = map[time.Weekday]Window{
	time.Monday:    weekdayWindow,
	time.Tuesday:   weekdayWindow,
	time.Wednesday: weekdayWindow,
	time.Thursday:  weekdayWindow,
	time.Friday:    weekdayWindow,
	time.Saturday:  {Open: 10, Close: 17},
}

// IsBookable reports whether the slot falls inside the business calendar.
// Only on-the-hour slots are legal and Sunday is always closed.
func IsBookable(d Date, t TimeOfDay) bool {
	if t.Minute != 0 {
		return false
	}
	w, ok := windows[d.Weekday()]
	if !ok {
		return false
	}
	return w.contains(t.Hour)
}

// WindowFor returns the opening window for a weekday, if any.
func WindowFor(day time.Weekday) (Window, bool) {
	w, ok := windows[day]
	return w, ok
}

// Describe renders the business calendar for client-facing messages.
func Describe() string {
	sat := windows[time.Saturday]
	return fmt.Sprintf(
		"Lunes a viernes de %02d:00 a %02d:00, sábados de %02d:00 a %02d:00, domingos cerrado. Solo turnos en punto (minutos 00).",
		weekdayWindow.Open, weekdayWindow.Close, sat.Open, sat.Close,
	)
}
