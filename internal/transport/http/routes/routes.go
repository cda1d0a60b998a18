package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/infra/config"
	"github.com/arklim/otp-auth-service/internal/transport/http/handlers"
	"github.com/arklim/otp-auth-service/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Registration handlers.RegistrationFlow
	Auth         handlers.Authenticator
	Users        handlers.UserAdministration
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    ServiceSet
	AdminPolicy middleware.AdminAuthorizer
	Health      *handlers.HealthHandler
	HTTPMetrics *middleware.HTTPMetrics
	// Gatherer backs /metrics. Defaults to the global prometheus registry.
	Gatherer prometheus.Gatherer
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var origins []string
	if deps.Config != nil {
		origins = deps.Config.App.CORSOrigins
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.CORS(origins))

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthHandler()
	}
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Services.Registration != nil {
		handlers.NewRegistrationHandler(deps.Services.Registration).RegisterRoutes(r)
	}
	if deps.Services.Auth != nil {
		handlers.NewAuthHandler(deps.Services.Auth).RegisterRoutes(r)
	}
	if deps.Services.Users != nil {
		handlers.NewUserHandler(deps.Services.Users).RegisterRoutes(&r.RouterGroup, middleware.RequireAdmin(deps.AdminPolicy))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.NewErrorResponse(c, "route not found"))
	})

	return r
}
