package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/barber-api/internal/config"
	"github.com/jwalitptl/barber-api/internal/email"
	"github.com/jwalitptl/barber-api/internal/handler/health"
	promHandler "github.com/jwalitptl/barber-api/internal/handler/prometheus"
	"github.com/jwalitptl/barber-api/internal/middleware"
	"github.com/jwalitptl/barber-api/pkg/logger"
	"github.com/jwalitptl/barber-api/pkg/messaging/redis"
	"github.com/jwalitptl/barber-api/pkg/metrics"
	"github.com/jwalitptl/barber-api/pkg/worker"
)

// setupHealthCheck serves liveness, readiness and metrics for the worker.
func setupHealthCheck(port int, checks map[string]health.Pinger, reg *prometheus.Registry, log *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())

	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", promHandler.New(reg, reg, "barber_notifier").Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig()).WithFields(map[string]interface{}{
		"component": "notifier",
	})
	log.Logger = appLogger.Zerolog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics(reg, "barber", "notifier")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger, m)
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	consumer, err := worker.NewNotificationConsumer(
		broker,
		email.NewService(cfg.ToEmailConfig(), appLogger),
		cfg.Notification.ToConsumerConfig(),
		appLogger,
		m,
	)
	if err != nil {
		appLogger.Fatal(err, "Failed to create notification consumer")
	}

	// Setup health check endpoints
	healthSrv := setupHealthCheck(cfg.Notification.HealthPort, map[string]health.Pinger{"redis": broker}, reg, appLogger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	consumer.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = healthSrv.Shutdown(shutdownCtx)
}
