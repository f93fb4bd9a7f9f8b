// Package main is the entry point for the fretops background worker: it
// drains the event outbox into notifications and mail, and runs periodic
// cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fretops/internal/domain/auth"
	"fretops/internal/domain/notification"
	"fretops/internal/infrastructure/email"
	"fretops/internal/infrastructure/storage/postgres"
	"fretops/internal/infrastructure/storage/postgres/auth_repo"
	"fretops/internal/infrastructure/storage/postgres/notification_repo"
	"fretops/internal/infrastructure/storage/postgres/operation_repo"
	"fretops/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting fretops worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	operationRepo := operation_repo.NewRepo(txManager)
	notificationRepo := notification_repo.NewRepo(txManager)
	userRepo := auth_repo.NewUserRepo(txManager)
	roleRepo := auth_repo.NewRoleRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(getEnv("JWT_SECRET", "change-me-in-production")))
	directory := auth.NewService(
		userRepo, roleRepo, tokenRepo, txManager, jwtService,
		auth.DefaultServiceConfig(),
	)

	// Mail is optional: without an SMTP host the fan-out stays in-app only.
	var sender notification.EmailSender
	if host := getEnv("SMTP_HOST", ""); host != "" {
		sender = email.NewSMTPSender(email.Config{
			Host:     host,
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@fretops.local"),
		})
		log.Infow("email delivery enabled", "host", host)
	}

	fanout := notification.NewFanout(operationRepo, notificationRepo, directory, sender)
	relay := postgres.NewOutboxRelay(pool, getEnvInt("OUTBOX_BATCH_SIZE", 100), &fanoutHandler{fanout: fanout})

	pollInterval := getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("worker running", "poll_interval", pollInterval)

	for {
		select {
		case <-quit:
			log.Info("shutting down worker...")
			cancel()
			log.Info("worker stopped")
			return

		case <-ticker.C:
			processed, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Errorw("outbox batch failed", "error", err)
				continue
			}
			if processed > 0 {
				log.Debugw("outbox batch delivered", "count", processed)
			}

		case <-cleanupTicker.C:
			if moved, err := relay.MoveToDLQ(ctx); err != nil {
				log.Errorw("DLQ move failed", "error", err)
			} else if moved > 0 {
				log.Warnw("exhausted outbox messages moved to DLQ", "count", moved)
			}

			if removed, err := tokenRepo.CleanupExpiredTokens(ctx); err != nil {
				log.Errorw("token cleanup failed", "error", err)
			} else if removed > 0 {
				log.Infow("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

// fanoutHandler bridges the outbox relay to the notification fan-out.
type fanoutHandler struct {
	fanout *notification.Fanout
}

func (h *fanoutHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	ev, err := msg.Event()
	if err != nil {
		return err
	}
	return h.fanout.Deliver(ctx, ev)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
