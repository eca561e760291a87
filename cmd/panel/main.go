package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/config"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/handler"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/cache"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/observability"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/resilience"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/infra"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/port"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Config (.env is optional, for local development) ---
	cfg := config.Load(".env")

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("chatkit_api_url", cfg.ChatKitAPIURL),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "giant-coach-panel-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Sessions & widget error feed ---
	var (
		store interface {
			port.SessionStore
			handler.HealthChecker
		}
		feed port.ErrorFeed
	)

	switch cfg.SessionBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()

		logger.Info("using Redis for panel sessions", zap.String("addr", cfg.RedisAddr))
		store = infra.NewRedisSessionStore(rdb, cfg.SessionTTL)
		feed = infra.NewRedisErrorFeed(rdb, logger)
	default:
		logger.Info("using in-memory panel sessions")
		sessions := cache.New[domain.PanelState](cfg.SessionTTL)
		defer sessions.Close()
		store = infra.NewMemorySessionStore(sessions)
		feed = infra.NewMemoryErrorFeed(100, logger)
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("chatkit", logger, resilience.WithSuccessFilter(infra.ChatKitBreakerSuccess))

	// --- ChatKit transport ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	transport := infra.NewChatKitClient(httpClient, infra.ChatKitConfig{
		APIURL:    cfg.ChatKitAPIURL,
		DomainKey: cfg.ChatKitDomainKey,
	}, cb, resilienceCfg)

	// --- Services ---
	panelSvc := service.NewPanelService(transport, store, feed, domain.PanelConfig{
		ChatKitURL:         cfg.ChatKitAPIURL,
		DomainKey:          cfg.ChatKitDomainKey,
		ColorScheme:        "dark",
		AttachmentsEnabled: false,
		Greeting:           domain.DefaultGreeting,
		Prompts:            domain.DefaultPrompts,
		TimeSlots:          domain.TimeSlots,
		Journeys:           domain.Journeys,
	}, metrics, logger)
	tokens := service.NewSessionTokens(cfg.SessionTokenSecret, cfg.SessionTTL)

	// --- Router ---
	router := handler.NewRouter(handler.RouterDeps{
		PanelService:   panelSvc,
		Tokens:         tokens,
		SessionStore:   store,
		SessionBackend: cfg.SessionBackend,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
		Logger:         logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Lifecycle: server + widget error consumer, stopped by SIGINT/SIGTERM ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Inscreve antes do ListenAndServe: erros do widget nunca chegam sem consumidor.
	widgetErrors, err := panelSvc.SubscribeWidgetErrors(gctx)
	if err != nil {
		logger.Fatal("failed to subscribe to widget errors", zap.Error(err))
	}

	g.Go(func() error {
		return panelSvc.Consume(gctx, widgetErrors)
	})

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
