package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/barber-api/internal/clock"
)

// allDates walks two full years so every weekday and month boundary is covered.
func allDates(t *testing.T, fn func(d Date)) {
	t.Helper()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day := start; day.Year() < 2026; day = day.AddDate(0, 0, 1) {
		fn(DateOf(day))
	}
}

func TestIsBookable_Weekdays(t *testing.T) {
	allDates(t, func(d Date) {
		wd := d.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return
		}
		for h := 0; h < 24; h++ {
			want := h >= 13 && h <= 18
			assert.Equal(t, want, IsBookable(d, TimeOfDay{Hour: h}), "%s %02d:00", d, h)
		}
	})
}

func TestIsBookable_Saturday(t *testing.T) {
	allDates(t, func(d Date) {
		if d.Weekday() != time.Saturday {
			return
		}
		for h := 0; h < 24; h++ {
			want := h >= 10 && h <= 16
			assert.Equal(t, want, IsBookable(d, TimeOfDay{Hour: h}), "%s %02d:00", d, h)
		}
	})
}

func TestIsBookable_SundayClosed(t *testing.T) {
	allDates(t, func(d Date) {
		if d.Weekday() != time.Sunday {
			return
		}
		for h := 0; h < 24; h++ {
			assert.False(t, IsBookable(d, TimeOfDay{Hour: h}), "%s %02d:00", d, h)
		}
	})
}

func TestIsBookable_NonZeroMinute(t *testing.T) {
	allDates(t, func(d Date) {
		for h := 0; h < 24; h++ {
			if !IsBookable(d, TimeOfDay{Hour: h}) {
				continue
			}
			for _, m := range []int{1, 15, 30, 59} {
				assert.False(t, IsBookable(d, TimeOfDay{Hour: h, Minute: m}), "%s %02d:%02d", d, h, m)
			}
		}
	})
}

func TestDate_WeekdayIgnoresLocalZone(t *testing.T) {
	orig := time.Local
	t.Cleanup(func() { time.Local = orig })

	for _, name := range []string{"Pacific/Kiritimati", "Pacific/Pago_Pago", "America/Argentina/Buenos_Aires"} {
		loc, err := time.LoadLocation(name)
		if err != nil {
			t.Skipf("zone %s unavailable: %v", name, err)
		}
		time.Local = loc

		d, err := ParseDate("2024-06-10")
		require.NoError(t, err)
		assert.Equal(t, time.Monday, d.Weekday(), name)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-06-10", want: "2024-06-10"},
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "2023-02-29", wantErr: true},
		{in: "2024-6-10", wantErr: true},
		{in: "10/06/2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "14:00", want: "14:00"},
		{in: "9:00", want: "09:00"},
		{in: "14:30", want: "14:30"},
		{in: "24:00", wantErr: true},
		{in: "14:5", wantErr: true},
		{in: "14h", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestGuard_Check(t *testing.T) {
	g := NewGuard()

	d, tm, err := g.Check("2024-06-10", "14:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", d.String())
	assert.Equal(t, "14:00", tm.String())

	_, _, err = g.Check("2024-06-10", "20:00")
	assert.ErrorIs(t, err, ErrOutsideHours)

	_, _, err = g.Check("2024-06-16", "12:00")
	assert.ErrorIs(t, err, ErrOutsideHours)

	_, _, err = g.Check("2024-06-10", "14:30")
	assert.ErrorIs(t, err, ErrOutsideHours)

	_, _, err = g.Check("mañana", "14:00")
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestGuard_RejectPast(t *testing.T) {
	now := time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)
	g := NewGuard(WithRejectPast(clock.NewFixed(now), time.UTC))

	_, _, err := g.Check("2024-06-10", "15:00")
	assert.ErrorIs(t, err, ErrInPast)

	_, _, err = g.Check("2024-06-10", "16:00")
	assert.NoError(t, err)

	_, _, err = NewGuard().Check("2020-06-10", "15:00")
	assert.NoError(t, err, "past slots are accepted unless the guard is configured to reject them")
}

func TestDescribe(t *testing.T) {
	msg := Describe()
	assert.Contains(t, msg, "13:00 a 19:00")
	assert.Contains(t, msg, "10:00 a 17:00")
}
