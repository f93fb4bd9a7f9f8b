// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"fretops/internal/domain/auth"
	"fretops/internal/domain/dossier"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/notification"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/filestore"
	"fretops/internal/infrastructure/http/v1/handlers"
	"fretops/internal/infrastructure/http/v1/middleware"
	"fretops/pkg/logger"
)

// RouterConfig holds the wired services the API exposes.
type RouterConfig struct {
	Pool    *pgxpool.Pool
	Logger  *logger.Logger
	Version string

	JWTValidator middleware.JWTValidator

	AuthService         *auth.Service
	OperationService    *operation.Service
	FactureService      *facture.Service
	DossierService      *dossier.Service
	NotificationService *notification.Service

	Files filestore.Store
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Auth: public endpoints plus a protected group
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		publicAuth := v1.Group("/auth")
		protectedAuth := v1.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.JWTValidator))
		authHandler.RegisterRoutes(publicAuth, protectedAuth)

		// Everything else requires a valid token
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		operationHandler := handlers.NewOperationHandler(baseHandler, cfg.OperationService, cfg.Files)
		operationHandler.RegisterRoutes(protected.Group("/operations"))

		factureHandler := handlers.NewFactureHandler(baseHandler, cfg.FactureService)
		factureHandler.RegisterRoutes(protected.Group("/factures"))

		dossierHandler := handlers.NewDossierHandler(baseHandler, cfg.DossierService)
		dossierHandler.RegisterRoutes(protected.Group("/dossiers"))

		notificationHandler := handlers.NewNotificationHandler(baseHandler, cfg.NotificationService)
		notificationHandler.RegisterRoutes(protected.Group("/notifications"))
	}

	return router
}
