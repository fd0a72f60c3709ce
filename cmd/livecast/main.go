package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livecast/internal/core/domain"
	"livecast/internal/core/ports"
	"livecast/internal/core/services"
	"livecast/internal/infrastructure/distributed"
	"livecast/internal/infrastructure/middleware"
	"livecast/internal/infrastructure/monitoring"
	"livecast/internal/infrastructure/repositories"
	signalws "livecast/internal/infrastructure/signal"
	"livecast/pkg/config"
	"livecast/pkg/logger"
	"livecast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/livecast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Metrics
	var metrics ports.MetricsRecorder
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector()
	} else {
		metrics = monitoring.NoopRecorder{}
	}

	// Chat store and platform event bus: Redis when configured, in-memory
	// fallbacks otherwise.
	storeFactory := repositories.NewStoreFactory(cfg, log)
	defer storeFactory.Close()

	chatStore := storeFactory.CreateChatStore()
	publisher := storeFactory.CreateEventPublisher()

	healthChecker := monitoring.NewHealthChecker()
	if client := storeFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 2*time.Second)
	}
	healthChecker.AddChatStoreCheck(chatStore, 2*time.Second)

	// Core services
	verifier := services.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	registry := services.NewRegistryService(verifier, metrics, log)
	state := services.NewStreamStateService()
	events := services.NewEventService(registry, state, chatStore, publisher, metrics, log, services.EventServiceConfig{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryCacheTTL:  cfg.Chat.HistoryCacheTTL,
		PersistTimeout:   10 * time.Second,
	})
	relay := services.NewRelayService(state, registry, publisher, metrics, log)

	// Viewer count is derived from registry membership; every mutation
	// fans the new count out.
	registry.OnMembershipChange(func() {
		events.ViewerCountChanged(context.Background())
	})

	// With Redis enabled, chat posted on other instances reaches the
	// connections held locally through the platform bus.
	if bus := storeFactory.EventBus(); bus != nil {
		busCtx, busCancel := context.WithCancel(context.Background())
		defer busCancel()
		go func() {
			err := bus.Subscribe(busCtx, func(event *distributed.Event) error {
				if event.Type != distributed.EventChatMessage {
					return nil
				}
				var msg domain.ChatMessage
				if err := json.Unmarshal(event.Payload, &msg); err != nil {
					return err
				}
				registry.BroadcastToAll(domain.NewChatBroadcastMessage(msg))
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("event bus subscription ended", "error", err)
			}
		}()
	}

	// WebSocket endpoint
	wsServer := signalws.NewWebSocketServer(registry, relay, events, metrics, log, signalws.Options{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		ReadTimeout:       cfg.Signal.ReadTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		AllowedOrigins:    cfg.Auth.AllowedOrigins,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
		MaxMessageSize:    cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
	})

	// Router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	router.GET("/ws", middleware.NewWSConnectionRateLimitMiddleware(cfg), func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	router.GET("/healthz", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status.Status,
			"timestamp":   status.Timestamp,
			"checks":      status.Checks,
			"uptime":      time.Since(startTime).String(),
			"connections": wsServer.ActiveConnections(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting livecast coordination server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down livecast server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer", "error", err)
		}
	}

	log.Info("livecast server stopped")
}
