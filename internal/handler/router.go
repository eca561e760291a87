package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/domain"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/infra/observability"
	panelhandler "github.com/boddenberg/giant-coach-panel-bfa/internal/panel/handler"
	"github.com/boddenberg/giant-coach-panel-bfa/internal/panel/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker is a dependency probed by GET /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterDeps groups what NewRouter wires into the HTTP surface.
// PanelService and Tokens may be nil, in which case the panel routes
// answer 503.
type RouterDeps struct {
	PanelService   *service.PanelService
	Tokens         *service.SessionTokens
	SessionStore   HealthChecker
	SessionBackend string
	AllowedOrigins []string
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", panelhandler.SessionTokenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.SessionStore, deps.SessionBackend))
	r.Get("/readyz", readyzHandler())
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// =============================================
		// 1. Painel Giant Coach
		// =============================================
		if deps.PanelService == nil || deps.Tokens == nil {
			r.Handle("/panel/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "panel service unavailable")
			}))
		} else {
			panelhandler.Routes(r, deps.PanelService, deps.Tokens, logger)
		}

		// =============================================
		// 2. Métricas
		// GET /v1/metrics/panel
		// =============================================
		if deps.Metrics != nil {
			r.Get("/metrics/panel", panelMetricsHandler(deps.Metrics))
		}
	})

	return r
}

func healthzHandler(store HealthChecker, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "panel-bfa", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := store.Ping(ctx)
			sh := domain.ServiceHealth{
				Name:        "session-store",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
				Detail:      backend,
			}
			if err != nil {
				sh.Status = "degraded"
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func panelMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPanelSnapshot())
	}
}
