package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/barber-api/internal/handler/health"
	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/repository/cache"
	"github.com/jwalitptl/barber-api/internal/repository/sqlstore"
	"github.com/jwalitptl/barber-api/internal/schedule"
	"github.com/jwalitptl/barber-api/internal/service/admin"
	"github.com/jwalitptl/barber-api/internal/service/booking"
	"github.com/jwalitptl/barber-api/migrations"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

const adminSecret = "s3cret"

type recordingNotifier struct {
	mu     sync.Mutex
	booked []model.Reservation
}

func (n *recordingNotifier) ReservationBooked(_ context.Context, r model.Reservation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, r)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.booked)
}

type testServer struct {
	engine   *gin.Engine
	notifier *recordingNotifier
}

func newTestServer(t *testing.T, limit *middleware.RateLimiterConfig, opts ...func(*RouterConfig)) *testServer {
	t.Helper()

	cfg := sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: filepath.Join(t.TempDir(), "barberia.db")}
	require.NoError(t, migrations.Apply(cfg.Driver, sqlstore.DSN(cfg)))
	db, err := sqlstore.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "test", "api")
	store := sqlstore.New(db, m)
	repo := cache.NewSlotCache(store, time.Minute, m)
	notifier := &recordingNotifier{}

	config := RouterConfig{
		Mode:           gin.TestMode,
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 16,
		CORSConfig:     middleware.DefaultCORSConfig(),
		RateLimit:      limit,
		MetricsPrefix:  "test",
	}
	for _, opt := range opts {
		opt(&config)
	}

	r, err := NewRouter(config, Dependencies{
		Booking:  booking.NewService(repo, schedule.NewGuard(), notifier, logger.Nop(), m),
		Admin:    admin.NewService(repo, logger.Nop()),
		Gate:     middleware.NewAdminGate(middleware.AdminGateConfig{Secret: adminSecret}),
		Health:   map[string]health.Pinger{"database": store},
		Registry: reg,
		Gatherer: reg,
	})
	require.NoError(t, err)
	r.Setup()

	return &testServer{engine: r.Engine(), notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func asAdmin() map[string]string {
	return map[string]string{middleware.DefaultAdminHeader: adminSecret}
}

func bookingBody(date, hour string) map[string]interface{} {
	return map[string]interface{}{
		"fecha":    date,
		"hora":     hour,
		"servicio": "Corte",
		"nombre":   gofakeit.Name(),
		"telefono": gofakeit.Phone(),
		"email":    gofakeit.Email(),
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func reservedSlots(t *testing.T, s *testServer) []interface{} {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/turnos", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	slots, ok := decode(t, w)["reservedSlots"].([]interface{})
	require.True(t, ok, w.Body.String())
	return slots
}

func TestBookAndList(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Empty(t, reservedSlots(t, s))

	w := s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "14:00"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "¡Turno reservado con éxito!", body["message"])
	assert.EqualValues(t, 1, body["turnoId"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "2024-06-10", details["fecha"])
	assert.Equal(t, "14:00", details["hora"])
	assert.Equal(t, "Corte", details["servicio"])

	assert.Equal(t, []interface{}{"2024-06-10-14:00"}, reservedSlots(t, s))
	assert.Equal(t, 1, s.notifier.count())
}

func TestBook_Duplicate(t *testing.T) {
	s := newTestServer(t, nil)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "14:00"), nil).Code)

	w := s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "14:00"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	body := decode(t, w)
	assert.Equal(t, "El turno seleccionado ya está reservado. Por favor, elige otro.", body["error"])
	assert.EqualValues(t, http.StatusConflict, body["code"])
	assert.NotEmpty(t, body["trace_id"])
	assert.Equal(t, 1, s.notifier.count())
}

func TestBook_Rejections(t *testing.T) {
	s := newTestServer(t, nil)

	missing := bookingBody("2024-06-10", "14:00")
	delete(missing, "telefono")
	blank := bookingBody("2024-06-10", "14:00")
	blank["nombre"] = "   "

	tests := []struct {
		name     string
		body     interface{}
		contains string
	}{
		{"after closing", bookingBody("2024-06-10", "20:00"), "Horario no válido"},
		{"half hour", bookingBody("2024-06-10", "14:30"), "Horario no válido"},
		{"sunday", bookingBody("2024-06-09", "14:00"), "Horario no válido"},
		{"bad date", bookingBody("10/06/2024", "14:00"), "Horario no válido"},
		{"missing field", missing, "Faltan campos obligatorios"},
		{"blank field", blank, "Faltan campos obligatorios"},
		{"malformed json", `{"fecha":`, "JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/turnos", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.contains)
		})
	}

	assert.Empty(t, reservedSlots(t, s))
	assert.Zero(t, s.notifier.count())
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	s := newTestServer(t, nil)

	const n = 10
	bodies := make([]map[string]interface{}, n)
	for i := range bodies {
		bodies[i] = bookingBody("2024-06-15", "10:00")
	}

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = s.do(t, http.MethodPost, "/api/turnos", bodies[i], nil).Code
		}(i)
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestAdmin_Gate(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/admin/turnos", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No autorizado.", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/admin/turnos", nil, map[string]string{middleware.DefaultAdminHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodDelete, "/api/admin/turnos/1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/turnos", nil, asAdmin())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, []interface{}{}, decode(t, w)["turnos"])
}

func TestAdmin_ListAndDelete(t *testing.T) {
	s := newTestServer(t, nil)

	for _, hour := range []string{"16:00", "13:00"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", hour), nil).Code)
	}

	w := s.do(t, http.MethodGet, "/api/admin/turnos", nil, asAdmin())
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["turnos"].([]interface{})
	require.Len(t, rows, 2)
	first := rows[0].(map[string]interface{})
	assert.Equal(t, "13:00", first["hora"])
	assert.NotEmpty(t, first["telefono"])

	id := int64(first["id"].(float64))
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/turnos/%d", id), nil, asAdmin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Turno eliminado con éxito.", body["message"])
	assert.EqualValues(t, id, body["idEliminado"])

	assert.Equal(t, []interface{}{"2024-06-10-16:00"}, reservedSlots(t, s))

	// the freed slot can be booked again
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "13:00"), nil).Code)
}

func TestAdmin_DeleteMissing(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/admin/turnos/999999", "/api/admin/turnos/abc", "/api/admin/turnos/0", "/api/admin/turnos/-3"} {
		w := s.do(t, http.MethodDelete, path, nil, asAdmin())
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Turno no encontrado.", decode(t, w)["error"], path)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &middleware.RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 1})

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "14:00"), nil).Code)
	w := s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", "15:00"), nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// listing is not limited
	assert.Len(t, reservedSlots(t, s), 1)
}

func TestRateLimit_IgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t, &middleware.RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 1})

	created := 0
	for i, hour := range []string{"10:00", "11:00", "12:00", "13:00", "14:00"} {
		headers := map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i+1),
		}
		w := s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", hour), headers)
		if w.Code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}

	assert.Equal(t, 1, created)
	assert.Len(t, reservedSlots(t, s), 1)
}

func TestRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	// httptest requests come from 192.0.2.1
	s := newTestServer(t, &middleware.RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 1}, func(c *RouterConfig) {
		c.TrustedProxies = []string{"192.0.2.1"}
	})

	for i, hour := range []string{"10:00", "11:00"} {
		headers := map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1)}
		w := s.do(t, http.MethodPost, "/api/turnos", bookingBody("2024-06-10", hour), headers)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestNewRouter_InvalidTrustedProxy(t *testing.T) {
	_, err := NewRouter(RouterConfig{Mode: gin.TestMode, TrustedProxies: []string{"not-an-ip"}}, Dependencies{})
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", nil, nil).Code)

	s.do(t, http.MethodGet, "/api/turnos", nil, nil)
	w := s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestRequestIDAndHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/turnos", nil, map[string]string{middleware.HeaderXRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(t, http.MethodGet, "/api/turnos", nil, nil)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	body := bookingBody("2024-06-10", "14:00")
	body["servicio"] = string(bytes.Repeat([]byte("x"), 1<<17))

	w := s.do(t, http.MethodPost, "/api/turnos", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "El cuerpo de la solicitud es demasiado grande.", decode(t, w)["error"])
	assert.Empty(t, reservedSlots(t, s))
}

func TestBodyTooLarge_UnknownLength(t *testing.T) {
	s := newTestServer(t, nil)

	body := bookingBody("2024-06-10", "14:00")
	body["servicio"] = string(bytes.Repeat([]byte("x"), 1<<17))
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	// a reader httptest cannot size leaves ContentLength at -1
	req := httptest.NewRequest(http.MethodPost, "/api/turnos", io.MultiReader(bytes.NewReader(raw)))
	req.Header.Set("Content-Type", "application/json")
	require.EqualValues(t, -1, req.ContentLength)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "El cuerpo de la solicitud es demasiado grande.", decode(t, w)["error"])
	assert.Empty(t, reservedSlots(t, s))
}
