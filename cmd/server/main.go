// Package main is the entry point for the fretops API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fretops/internal/domain/auth"
	"fretops/internal/domain/dossier"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/notification"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/filestore"
	v1 "fretops/internal/infrastructure/http/v1"
	"fretops/internal/infrastructure/storage/postgres"
	"fretops/internal/infrastructure/storage/postgres/auth_repo"
	"fretops/internal/infrastructure/storage/postgres/facture_repo"
	"fretops/internal/infrastructure/storage/postgres/notification_repo"
	"fretops/internal/infrastructure/storage/postgres/operation_repo"
	"fretops/pkg/logger"
)

const version = "1.0.0"

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting fretops server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	operationRepo := operation_repo.NewRepo(txManager)
	historiqueRepo, err := operation_repo.NewHistoriqueRepo(txManager)
	if err != nil {
		log.Fatalw("failed to initialize historique repository", "error", err)
	}
	factureRepo := facture_repo.NewRepo(txManager)
	notificationRepo := notification_repo.NewRepo(txManager)
	userRepo := auth_repo.NewUserRepo(txManager)
	roleRepo := auth_repo.NewRoleRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "change-me-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Services ---
	authService := auth.NewService(
		userRepo, roleRepo, tokenRepo, txManager, jwtService,
		auth.DefaultServiceConfig(),
	)

	dossierLookup := dossier.NewLookup(operationRepo, factureRepo)
	outbox := postgres.NewOutboxPublisher(txManager)

	operationService := operation.NewService(
		operationRepo, historiqueRepo, authService, dossierLookup, outbox, txManager,
	)
	factureService := facture.NewService(factureRepo, txManager)
	dossierService := dossier.NewService(operationRepo, factureRepo)
	notificationService := notification.NewService(notificationRepo)

	// --- File storage ---
	files, err := filestore.NewDiskStore(getEnv("STORAGE_DIR", "./data/documents"))
	if err != nil {
		log.Fatalw("failed to initialize file storage", "error", err)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:                pool.Pool,
		Logger:              log,
		Version:             version,
		JWTValidator:        jwtService,
		AuthService:         authService,
		OperationService:    operationService,
		FactureService:      factureService,
		DossierService:      dossierService,
		NotificationService: notificationService,
		Files:               files,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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
