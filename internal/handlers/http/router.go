package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/middleware"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"
)

// RouterDeps carries everything the HTTP surface is built from. Auth is
// only consulted when cfg.Auth.Enabled is set; Gatherer may be nil when
// metrics are disabled.
type RouterDeps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Relay       ports.RelayService
	Viewers     ViewerServer
	Diagnostics ports.DiagnosticsService
	Cameras     ports.CameraService
	Events      ports.EventService
	Health      ReadinessChecker
	StartedAt   time.Time
	Auth        services.AuthService
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger.Sugar()

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(deps.Logger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
	)

	streams := NewStreamHandler(deps.Relay, deps.Viewers)
	diagnostics := NewDiagnosticsHandler(deps.Diagnostics)
	cameras := NewCameraHandler(deps.Cameras, deps.Relay, deps.Diagnostics)
	events := NewEventHandler(deps.Events)
	health := NewHealthHandler(deps.Health, deps.StartedAt)

	viewer := roleGuard(deps, domain.RoleViewer)
	operator := roleGuard(deps, domain.RoleOperator)

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)

	if cfg.Monitoring.PrometheusEnabled && deps.Gatherer != nil {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	router.GET(cfg.Relay.PublicBasePath+":id",
		middleware.NewWebSocketRateLimitMiddleware(cfg), viewer, streams.Watch)

	api := router.Group("/api/v1")
	api.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	{
		api.POST("/streams/connect", operator, streams.Connect)
		api.POST("/streams/disconnect", operator, streams.Disconnect)
		api.GET("/streams", viewer, streams.ListStreams)
		api.GET("/streams/:id", viewer, streams.GetStream)
		api.DELETE("/streams/:id", operator, streams.StopStream)

		api.POST("/diagnostics", operator, diagnostics.Run)

		api.GET("/events", viewer, events.ListEvents)

		api.POST("/cameras", operator, cameras.CreateCamera)
		api.GET("/cameras", viewer, cameras.ListCameras)
		api.GET("/cameras/default", viewer, cameras.GetDefaultCamera)
		api.GET("/cameras/:id", viewer, cameras.GetCamera)
		api.PATCH("/cameras/:id", operator, cameras.UpdateCamera)
		api.DELETE("/cameras/:id", operator, cameras.DeleteCamera)
		api.POST("/cameras/:id/connect", operator, cameras.ConnectCamera)
		api.POST("/cameras/:id/diagnostics", operator, cameras.DiagnoseCamera)
	}

	return router
}

func roleGuard(deps RouterDeps, role domain.Role) gin.HandlerFunc {
	if !deps.Config.Auth.Enabled || deps.Auth == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.AuthMiddleware(deps.Auth, role)
}
