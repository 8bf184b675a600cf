package routes

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/config"
	"github.com/arklim/weather-auth/internal/transport/http/handlers"
	"github.com/arklim/weather-auth/internal/transport/http/middleware"
	"github.com/arklim/weather-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Accounts *usecase.AccountService
	Sessions *usecase.SessionService
	Weather  port.WeatherProvider
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(cfg.App.Name))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.CORS(cfg.App.AllowedOrigins))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if deps.Services.Accounts != nil && deps.Services.Sessions != nil {
		authHandler := handlers.NewAuthHandler(deps.Services.Accounts, deps.Services.Sessions, handlers.CookieSettings{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.CookieDomain,
			Secure: cfg.Session.CookieSecure || cfg.App.IsProduction(),
			MaxAge: cfg.Session.TTL,
		})
		authHandler.RegisterRoutes(api)

		if deps.Services.Weather != nil {
			weatherHandler := handlers.NewWeatherHandler(deps.Services.Weather)
			api.GET("/weather", middleware.RequireSession(deps.Services.Sessions, cfg.Session.CookieName), weatherHandler.Lookup)
		}
	}

	if dir := cfg.App.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.NoRoute(gin.WrapH(staticFiles(dir)))
		} else if deps.Logger != nil {
			deps.Logger.Warn("static directory unavailable", zap.String("dir", dir))
		}
	}

	return r
}
