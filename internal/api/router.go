package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegate/internal/api/handlers"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/auth"
	"github.com/your-org/facegate/internal/authn"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/recognizer"
	"github.com/your-org/facegate/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	Service  *authn.Service
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Provider *recognizer.Provider
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Provider)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Authentication is the terminal-facing endpoint. The access terminal
	// carries no API key, so it stays outside the admin auth group.
	authH := handlers.NewAuthenticateHandler(cfg.Service)
	r.POST("/v1/authenticate", authH.Authenticate)

	// Admin API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket live attempt feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identity gallery
	identH := handlers.NewIdentityHandler(cfg.Service)
	v1.POST("/identities", identH.Enroll)
	v1.GET("/identities", identH.List)
	v1.DELETE("/identities/:id", identH.Remove)

	// Attempt ledger
	attemptH := handlers.NewAttemptHandler(cfg.Service, cfg.DB, cfg.MinIO)
	v1.GET("/attempts", attemptH.List)
	v1.GET("/attempts/:id/image", attemptH.Image)

	return r
}
