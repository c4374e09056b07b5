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
	_ "time/tzdata"

	"github.com/ikkim/vintage-store-backend/config"
	"github.com/ikkim/vintage-store-backend/internal/app/controller"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/internal/app/service"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
	"github.com/ikkim/vintage-store-backend/internal/router"
	"github.com/ikkim/vintage-store-backend/internal/scheduler"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"github.com/ikkim/vintage-store-backend/pkg/metrics"
	redislock "github.com/ikkim/vintage-store-backend/pkg/redis"
	"github.com/ikkim/vintage-store-backend/pkg/whatsapp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting vintage store backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if cfg.Server.Environment == "development" {
		if err := db.Seed(); err != nil {
			logger.Warn("Failed to seed database", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())
	releaseJobRepo := repository.NewReleaseJobRepository(db.GetDB())

	// Services
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.AdminExternalIDs)
	cartService := service.NewCartService(cartRepo, productRepo)
	reservationService := service.NewReservationService(
		productRepo,
		releaseJobRepo,
		cartService,
		newNotifier(&cfg.WhatsApp),
		service.NewExpiryPolicy(cfg.Reservation.Window, cfg.Reservation.Location()),
		metrics.NewReservationMetrics(reg),
		service.ReservationOptions{
			SweepCutoff:  cfg.Reservation.SweepCutoff,
			ReleaseGrace: cfg.Reservation.ReleaseGrace,
			AutoRelease:  cfg.Reservation.AutoRelease,
		},
	)

	sweepLock, releaseLock := newLocks(&cfg.Redis)
	defer func() {
		if err := redislock.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	reservationScheduler := scheduler.NewReservationScheduler(reservationService, scheduler.Options{
		SweepSchedule:   cfg.Reservation.SweepSchedule,
		ReleaseSchedule: cfg.Reservation.ReleaseSchedule,
		SweepLock:       sweepLock,
		ReleaseLock:     releaseLock,
		Metrics:         metrics.NewJobMetrics(reg),
	})
	if err := reservationScheduler.Start(); err != nil {
		logger.Fatal("Failed to start reservation scheduler", err)
	}

	// Controllers and middleware
	authController := controller.NewAuthController(authService)
	cartController := controller.NewCartController(cartService)
	reservationController := controller.NewReservationController(reservationService, reservationScheduler)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	r := router.NewRouter(
		authController,
		cartController,
		reservationController,
		authMiddleware,
		reg,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	reservationScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", err)
	}
	logger.Info("Server stopped successfully")
}

func newNotifier(cfg *config.WhatsAppConfig) service.Notifier {
	if !cfg.Enabled() {
		logger.Warn("WhatsApp gateway not configured, notices will only be logged")
		return service.NewLogNotifier()
	}

	client, err := whatsapp.NewClient(whatsapp.Config{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		BaseURL:    cfg.BaseURL,
		From:       cfg.From,
	})
	if err != nil {
		logger.Error("Invalid WhatsApp configuration, notices will only be logged", err)
		return service.NewLogNotifier()
	}
	return service.NewWhatsAppNotifier(client, cfg.SellerTo)
}

// newLocks returns Redis-backed job locks when Redis is configured and
// reachable, otherwise in-process locks.
func newLocks(cfg *config.RedisConfig) (redislock.Lock, redislock.Lock) {
	if !cfg.Enabled() {
		return redislock.NewLocalLock(), redislock.NewLocalLock()
	}
	if err := redislock.Init(cfg); err != nil {
		logger.Warn("Redis unavailable, using in-process job locks", map[string]interface{}{
			"error": err.Error(),
		})
		return redislock.NewLocalLock(), redislock.NewLocalLock()
	}

	sweepLock, err := redislock.NewRedisLock(redislock.GetClient(), scheduler.SweepLockKey, 0)
	if err != nil {
		logger.Fatal("Failed to build sweep lock", err)
	}
	releaseLock, err := redislock.NewRedisLock(redislock.GetClient(), scheduler.ReleaseLockKey, 0)
	if err != nil {
		logger.Fatal("Failed to build release lock", err)
	}
	return sweepLock, releaseLock
}
