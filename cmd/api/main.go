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

	"leadrouter_backend/internal/auth"
	"leadrouter_backend/internal/brokers"
	"leadrouter_backend/internal/email"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/http/router"
	"leadrouter_backend/internal/leads"
	leadsrepo "leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/reports"
	"leadrouter_backend/internal/timeout"
	"leadrouter_backend/internal/webhook"
	"leadrouter_backend/internal/whatsapp"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Redis backs webhook message deduplication. Without it every message
	// is treated as first delivery, which the state machine tolerates.
	deduper, closeRedis := initDeduper(ctx, cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	// Response timers for outstanding broker offers
	timers := timeout.NewScheduler(log)
	defer timers.Shutdown()

	// Outbound WhatsApp via the Evolution API (nil client disables sends)
	whatsappClient := whatsapp.NewClient(cfg, log)
	if whatsappClient == nil {
		log.Warn("evolution API not configured; outbound messages disabled")
	}

	// Operator email alerts for queue exhaustion and delivery failures
	alertSender := email.NewSender(cfg)
	email.SubscribeAlerts(eventBus, alertSender, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// The brokers module rejects registrations whose phone belongs to a
	// lead; a standalone leads repository provides that check so the two
	// modules can be constructed in order.
	leadPhones := leadsrepo.New(pool)

	brokersModule := brokers.NewModule(pool, leadPhones, val, log)
	leadsModule := leads.NewModule(pool, brokersModule.Service(), whatsappClient, timers, eventBus, cfg, val, log)
	webhookModule := webhook.NewModule(brokersModule.Service(), leadsModule.Service(), whatsappClient, deduper, cfg, log)
	authModule := auth.NewModule(pool, cfg, val, log)
	reportsModule := reports.NewModule(pool, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	engine := router.New(cfg, log, cfg.Env,
		authModule,
		brokersModule,
		leadsModule,
		webhookModule,
		reportsModule,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initDeduper connects to Redis when configured and falls back to a no-op
// deduper otherwise. The returned closer is nil in the fallback case.
func initDeduper(ctx context.Context, cfg *config.Config, log *logger.Logger) (webhook.Deduper, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; webhook deduplication disabled")
		return webhook.NoopDeduper{}, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable at startup; continuing", "error", err)
	}

	return webhook.NewRedisDeduper(client, cfg.GetWebhookDedupTTL()), func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
