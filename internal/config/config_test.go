package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/barber-api/internal/service/notification"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "barberia.db", cfg.Database.DSN)
	assert.Equal(t, notification.ModeDirect, cfg.Notification.Mode)
	assert.Equal(t, 30*time.Second, cfg.Notification.Timeout)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "X-Admin-Secret", cfg.Admin.Header)
	assert.False(t, cfg.Booking.RejectPast)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 8080
database:
  driver: postgres
  dsn: postgres://localhost/turnos
notification:
  mode: queue
  timeout: 5s
cache:
  slots_ttl: 0s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, notification.ModeQueue, cfg.Notification.Mode)
	assert.Equal(t, 5*time.Second, cfg.Notification.Timeout)
	assert.Zero(t, cfg.Cache.SlotsTTL)
	// untouched keys keep their defaults
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BARBER_SERVER_PORT", "4000")
	t.Setenv("BARBER_NOTIFICATION_MODE", "off")
	t.Setenv("GMAIL_USER", "mateo@example.com")
	t.Setenv("GMAIL_PASS", "app-password")
	t.Setenv("ADMIN_SECRET", "s3cret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, notification.ModeOff, cfg.Notification.Mode)
	assert.Equal(t, "mateo@example.com", cfg.Secrets.GmailUser)
	assert.Equal(t, "s3cret", cfg.Secrets.AdminSecret)

	ec := cfg.ToEmailConfig()
	assert.Equal(t, "mateo@example.com", ec.Username)
	assert.Equal(t, "app-password", ec.Password)

	gate := cfg.ToAdminGateConfig()
	assert.Equal(t, "s3cret", gate.Secret)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("BARBER_DATABASE_DRIVER", "mysql")
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "mysql")
	})
	t.Run("mode", func(t *testing.T) {
		t.Setenv("BARBER_NOTIFICATION_MODE", "sms")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
	t.Run("location", func(t *testing.T) {
		t.Setenv("BARBER_BOOKING_LOCATION", "Mars/Olympus")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestBookingConfig_TimeLocation(t *testing.T) {
	loc, err := BookingConfig{Location: "Local"}.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = BookingConfig{Location: "UTC"}.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
