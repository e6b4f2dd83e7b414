package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AuthService is everything the router needs from the service layer: the
// handler surface plus token checks for the auth middleware.
type AuthService interface {
	handlers.AuthService
	middlewares.IdentityVerifier
}

type Deps struct {
	Cfg     config.Config
	Log     *slog.Logger
	Prom    *observability.Prom
	Service AuthService
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if d.Cfg.OTelEnabled {
		r.Use(otelgin.Middleware(observability.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))

	r.NoRoute(handlers.NoRoute)

	// health
	h := handlers.NewHealthHandler(observability.ServiceName, d.Ping)
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Prom != nil {
		r.GET("/metrics", d.Prom.Handler())
	}

	authHandler := handlers.NewAuthHandler(d.Service, handlers.CookieConfigFrom(d.Cfg), d.Log)
	authMW := middlewares.NewAuthMiddleware(d.Service, d.Cfg.CookieName)

	api := r.Group("/api/auth")
	api.Use(middlewares.RequireJSON())
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.GET("/verify", authHandler.Verify)

		protected := api.Group("")
		protected.Use(authMW.RequireAuth())
		protected.GET("/profile", authHandler.Profile)
		protected.POST("/deduct-balance", authHandler.DeductBalance)
		protected.POST("/notify-order", authHandler.NotifyOrder)
	}

	return r
}
