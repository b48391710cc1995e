package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	adminHandler "github.com/jwalitptl/barber-api/internal/handler/admin"
	"github.com/jwalitptl/barber-api/internal/handler/health"
	promHandler "github.com/jwalitptl/barber-api/internal/handler/prometheus"
	"github.com/jwalitptl/barber-api/internal/handler/turnos"
	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/pkg/validator"
)

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
	// RateLimit guards bookings; nil turns it off.
	RateLimit     *middleware.RateLimiterConfig
	MetricsPrefix string
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Empty means
	// the client IP is always the peer address.
	TrustedProxies []string
}

type Dependencies struct {
	Booking turnos.BookingService
	Admin   adminHandler.AdminService
	Gate    *middleware.AdminGate
	// Health lists what readiness pings.
	Health   map[string]health.Pinger
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
}

type Router struct {
	engine   *gin.Engine
	turnosH  *turnos.Handler
	adminH   *adminHandler.Handler
	healthH  *health.Handler
	metricsH *promHandler.Handler
	gate     *middleware.AdminGate
	limiter  *middleware.RateLimiter
}

func NewRouter(config RouterConfig, deps Dependencies) (*Router, error) {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)
	validator.Register()

	if deps.Registry == nil {
		deps.Registry = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	// the rate limiter keys on ClientIP, so forwarding headers only count
	// when a known proxy sent them
	if err := engine.SetTrustedProxies(config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r := &Router{
		engine:   engine,
		turnosH:  turnos.NewHandler(deps.Booking),
		adminH:   adminHandler.NewHandler(deps.Admin),
		healthH:  health.NewHandler(deps.Health),
		metricsH: promHandler.New(deps.Registry, deps.Gatherer, config.MetricsPrefix),
		gate:     deps.Gate,
	}
	if r.gate == nil {
		r.gate = middleware.NewAdminGate(middleware.AdminGateConfig{})
	}
	if config.RateLimit != nil {
		r.limiter = middleware.NewRateLimiter(*config.RateLimit)
	}

	// Add core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsH.Middleware(),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(),
		middleware.ErrorHandler(),
	)

	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	engine.Use(middleware.Timeout(config.RequestTimeout))

	return r, nil
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api")

	var limit []gin.HandlerFunc
	if r.limiter != nil {
		limit = append(limit, r.limiter.RateLimit())
	}
	r.turnosH.RegisterRoutes(api, limit...)

	admin := api.Group("/admin")
	admin.Use(r.gate.Require(), middleware.NoStore())
	r.adminH.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
