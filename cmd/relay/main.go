package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camrelay/internal/core/ports"
	"camrelay/internal/core/services"
	httphandlers "camrelay/internal/handlers/http"
	"camrelay/internal/infrastructure/monitoring"
	"camrelay/internal/infrastructure/probe"
	"camrelay/internal/infrastructure/relay"
	repositories "camrelay/internal/infrastructure/repositories"
	"camrelay/internal/infrastructure/repositories/memory"
	"camrelay/internal/infrastructure/transcode"
	"camrelay/pkg/circuitbreaker"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"
	"camrelay/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var configPaths = []string{
	"configs/config.yaml",
	"/etc/camrelay/config.yaml",
	"config.yaml",
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return configPaths[0]
}

func main() {
	startTime := time.Now()

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "camrelay: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camrelay: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "camrelay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories fall back to memory when Redis is disabled or unreachable.
	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, log)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    cfg.Events.BreakerFailures,
		SuccessThreshold:    1,
		Timeout:             cfg.Events.BreakerCooldown,
		MaxRequestsHalfOpen: 1,
	})
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		log.Warnw("Event store circuit changed", "from", from.String(), "to", to.String())
	})
	var eventFallback ports.EventRepository
	if repoFactory.UsesRedis() {
		eventFallback = memory.NewMemoryEventRepository(cfg.Events.MaxRecords)
	}
	eventService := services.NewEventService(
		repoFactory.CreateEventRepository(),
		eventFallback,
		breaker,
		cfg.Events.PersistTimeout,
		log,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	launcher := transcode.NewFFmpegLauncher(transcode.FFmpegConfig{
		Path:         cfg.Relay.FFmpegPath,
		VideoBitrate: cfg.Relay.VideoBitrate,
		FrameRate:    cfg.Relay.FrameRate,
		AudioEnabled: cfg.Relay.AudioEnabled,
		StderrLines:  cfg.Relay.StderrLines,
	}, log)

	streams := relay.NewRegistry(launcher, relay.Config{
		IdleGrace: cfg.Relay.IdleGrace,
		Transcode: transcode.Config{
			ChunkSize: cfg.Relay.ReadChunkSize,
			StopGrace: cfg.Relay.StopGrace,
		},
		EndpointBase: cfg.Relay.PublicBasePath,
	}, eventService, collector, log)

	viewers := relay.NewViewerServer(streams, relay.WebSocketConfig{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongTimeout:    cfg.WebSocket.PongTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		ReadLimit:      cfg.WebSocket.ReadLimit,
		SendBuffer:     cfg.Relay.ViewerBuffer,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
	}, log)

	prober := probe.NewProber(probe.Config{
		ProbeTimeout:      cfg.Diagnostics.ProbeTimeout,
		PingTimeout:       cfg.Diagnostics.PingTimeout,
		TracerouteTimeout: cfg.Diagnostics.TracerouteTimeout,
		TracerouteMaxHops: cfg.Diagnostics.TracerouteMaxHops,
		InternetTargets:   cfg.Diagnostics.InternetTargets,
	}, nil)
	diagnosticsService := services.NewDiagnosticsService(prober, eventService, collector, cfg.Diagnostics.Timeout, log)

	cameraService := services.NewCameraService(repoFactory.CreateCameraRepository(), eventService, log)

	var authService services.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	}

	health := monitoring.NewHealthChecker()
	health.AddFFmpegCheck(cfg.Relay.FFmpegPath, 2*time.Second)
	if repoFactory.UsesRedis() {
		health.AddRepositoryCheck(repoFactory.HealthCheck, 2*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:      cfg,
		Logger:      zapLogger,
		Relay:       streams,
		Viewers:     viewers,
		Diagnostics: diagnosticsService,
		Cameras:     cameraService,
		Events:      eventService,
		Health:      health,
		StartedAt:   startTime,
		Auth:        authService,
		Gatherer:    registry,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting camrelay server",
			"address", cfg.Server.Address,
			"redis", repoFactory.UsesRedis(),
			"auth", cfg.Auth.Enabled,
			"tracing", cfg.Tracing.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	log.Info("Shutting down camrelay server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Ending the streams first closes viewer sockets, which lets the HTTP
	// server drain its hijacked connections.
	if err := streams.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error stopping streams", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error flushing traces", "error", err)
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("camrelay server stopped")
}
