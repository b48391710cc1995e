package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/barber-api/internal/clock"
	"github.com/jwalitptl/barber-api/internal/config"
	"github.com/jwalitptl/barber-api/internal/email"
	"github.com/jwalitptl/barber-api/internal/handler/health"
	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/internal/repository"
	"github.com/jwalitptl/barber-api/internal/repository/cache"
	"github.com/jwalitptl/barber-api/internal/repository/sqlstore"
	"github.com/jwalitptl/barber-api/internal/router"
	"github.com/jwalitptl/barber-api/internal/schedule"
	adminService "github.com/jwalitptl/barber-api/internal/service/admin"
	bookingService "github.com/jwalitptl/barber-api/internal/service/booking"
	"github.com/jwalitptl/barber-api/internal/service/notification"
	"github.com/jwalitptl/barber-api/migrations"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging"
	"github.com/jwalitptl/barber-api/pkg/messaging/redis"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())
	log.Logger = appLogger.Zerolog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, "barber", "api")

	ctx := context.Background()

	// Initialize database
	storeCfg := cfg.Database.ToStoreConfig()
	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(storeCfg.Driver, sqlstore.DSN(storeCfg)); err != nil {
			appLogger.Fatal(err, "failed to apply migrations")
		}
	}
	db, err := sqlstore.Open(ctx, storeCfg)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database", "driver", storeCfg.Driver)
	}
	defer db.Close()

	store := sqlstore.New(db, m)
	var repo repository.ReservationRepository = store
	if cfg.Cache.SlotsTTL > 0 {
		repo = cache.NewSlotCache(store, cfg.Cache.SlotsTTL, m)
	}

	checks := map[string]health.Pinger{"database": store}

	// Notification delivery
	var (
		emailSvc email.Service
		broker   messaging.Broker
	)
	switch cfg.Notification.Mode {
	case notification.ModeDirect:
		if cfg.Secrets.GmailUser == "" {
			appLogger.Warn("GMAIL_USER is not set, booking e-mails will fail")
		}
		emailSvc = email.NewService(cfg.ToEmailConfig(), appLogger)
	case notification.ModeQueue:
		rb, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger, m)
		if err != nil {
			appLogger.Fatal(err, "failed to connect to Redis")
		}
		defer rb.Close()
		broker = rb
		checks["redis"] = rb
	}

	notifier, err := notification.NewService(cfg.Notification.ToServiceConfig(), emailSvc, broker, appLogger, m)
	if err != nil {
		appLogger.Fatal(err, "failed to build notifier")
	}

	guard, err := newGuard(cfg.Booking)
	if err != nil {
		appLogger.Fatal(err, "invalid booking configuration")
	}

	// Initialize services
	bookingSvc := bookingService.NewService(repo, guard, notifier, appLogger, m)
	adminSvc := adminService.NewService(repo, appLogger)

	gate := middleware.NewAdminGate(cfg.ToAdminGateConfig())
	if !gate.Configured() {
		appLogger.Warn("no admin secret configured, admin endpoints will reject every request")
	}

	routerCfg := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSConfig:     cfg.CORS.ToMiddlewareConfig(),
		MetricsPrefix:  "barber",
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	if cfg.RateLimit.Enabled {
		limit := cfg.RateLimit.ToLimiterConfig()
		routerCfg.RateLimit = &limit
	}

	// Setup router
	r, err := router.NewRouter(routerCfg, router.Dependencies{
		Booking:  bookingSvc,
		Admin:    adminSvc,
		Gate:     gate,
		Health:   checks,
		Registry: reg,
		Gatherer: reg,
	})
	if err != nil {
		appLogger.Fatal(err, "invalid router configuration")
	}
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("server listening", "addr", srv.Addr, "notification_mode", cfg.Notification.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}
	// let mails already on their way finish
	if err := notifier.Wait(shutdownCtx); err != nil {
		appLogger.Warn("pending notifications abandoned", "error", err.Error())
	}

	appLogger.Info("server exited properly")
}

func newGuard(cfg config.BookingConfig) (*schedule.Guard, error) {
	if !cfg.RejectPast {
		return schedule.NewGuard(), nil
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}
	return schedule.NewGuard(schedule.WithRejectPast(clock.NewSystem(), loc)), nil
}
