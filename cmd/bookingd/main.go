package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/api"
	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/db"
	"studio-booking-backend/internal/lock"
	"studio-booking-backend/internal/notification"
	"studio-booking-backend/internal/query"
	"studio-booking-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Logging.SlogLevel())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", "studio-booking")
	slog.SetDefault(logger)
	logger.Info("Configuration loaded", "path", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn("VAPID keys are not configured; session change notices are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Error("Failed to get sql.DB", "error", err)
		os.Exit(1)
	}

	selector := query.NewSelector(query.BudgetFromStats(sqlDB.Stats()))
	logger.Info("Database initialized",
		"driver", cfg.Database.Driver,
		"max_open_conns", cfg.Database.MaxOpenConns,
		"execution_mode", selector.Mode().String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := booking.Options{
		Locker:   lock.New(cfg.Database.LockTimeout()),
		Selector: selector,
		Logger:   logger.With("component", "booking"),
	}
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		opts.Notifier = pool
	}
	svc := booking.NewService(gormDB, opts)

	appStore := store.NewGormStore(gormDB)
	router := api.NewRouter(appStore, svc, webpushOptions, api.RouterOptions{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
		CacheTTL:  time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Logger:    logger.With("component", "api"),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe", "error", err)
			os.Exit(1)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			reload(configPath, gormDB, selector, level, logger)
			continue
		}
		break
	}
	logger.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", "error", err)
	}
	cancel()
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Closing database failed", "error", err)
	}

	logger.Info("Server gracefully stopped")
}

// reload re-reads the config file and applies what can change at runtime:
// pool sizing, and with it the execution mode, and the log level. Driver and
// DSN changes need a restart.
func reload(path string, gormDB *gorm.DB, selector *query.Selector, level *slog.LevelVar, logger *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("Config reload failed, keeping current settings", "path", path, "error", err)
		return
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Error("Config reload failed", "error", err)
		return
	}
	db.ApplyPool(sqlDB, &cfg.Database)
	mode := selector.Reload(query.BudgetFromStats(sqlDB.Stats()))
	level.Set(cfg.Logging.SlogLevel())

	logger.Info("Configuration reloaded",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"execution_mode", mode.String(),
		"log_level", level.Level().String())
}
