package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/esig/task-manager/internal/api/docs"
	"github.com/esig/task-manager/internal/api/handler"
	"github.com/esig/task-manager/internal/api/middleware"
	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
	"github.com/esig/task-manager/pkg/logger"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth       ports.AuthService
	Tasks      ports.TaskService
	Tokens     ports.TokenVerifier
	Identities ports.IdentityResolver
	// Health maps dependency names to readiness checks.
	Health map[string]handler.Check
	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// HTTP metrics go to a registry owned by this router so several routers
	// can coexist in one process.
	reg := prometheus.NewRegistry()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	// The logger renders errors itself, so the status seen above it is final.
	e.Use(requestLogger(d.Logger))

	filter := middleware.NewAuthFilter(d.Tokens, d.Identities, middleware.DefaultPublicPrefixes, logger.Component(d.Logger, "auth_filter"))
	e.Use(filter.Authenticate())

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/create-admin", authHandler.CreateAdmin, middleware.RequireAuth(), middleware.RBAC(domain.RoleAdmin))

	// --- Task routes (bearer token required) ---
	taskHandler := handler.NewTaskHandler(d.Tasks)
	tasks := e.Group("/tasks", middleware.RequireAuth())
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.GET("/filter", taskHandler.Filter)
	tasks.GET("/overdue", taskHandler.Overdue)
	tasks.GET("/upcoming", taskHandler.Upcoming)
	tasks.GET("/status/:status", taskHandler.ByStatus)
	tasks.GET("/priority/:priority", taskHandler.ByPriority)
	tasks.GET("/user/:userId", taskHandler.ByOwner)
	tasks.GET("/:id", taskHandler.Get)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.PATCH("/:id", taskHandler.Patch)
	tasks.DELETE("/:id", taskHandler.Delete)
	tasks.PATCH("/:id/complete", taskHandler.Complete)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.Health)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	// --- Metrics & docs ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
