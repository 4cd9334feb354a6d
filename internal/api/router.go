package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/veritas/internal/api/handlers"
	mw "github.com/Harshitk-cp/veritas/internal/api/middleware"
	"github.com/Harshitk-cp/veritas/internal/buildconfig"
	"github.com/Harshitk-cp/veritas/internal/config"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Retention *service.RetentionService

	backend      *Backend
	services     *Services
	metrics      *mw.MetricsCollector
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp builds the HTTP surface over an already wired service graph.
func NewApp(b *Backend, svcs *Services, logger *zap.Logger) *App {
	queryHandler := handlers.NewQueryHandler(svcs.Orchestrator, logger)
	claimHandler := handlers.NewClaimHandler(svcs.Ledger)
	checkpointHandler := handlers.NewCheckpointHandler(svcs.Ledger)
	factHandler := handlers.NewFactHandler(svcs.Facts)

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		Retention: svcs.Retention,
		backend:   b,
		services:  svcs,
		startTime: time.Now(),
	}
	app.metrics = mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.Identity)

		r.Post("/query", queryHandler.Process)
		r.Post("/query/stream", queryHandler.Stream)

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Get("/", claimHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", claimHandler.Get)
				r.Get("/audit", claimHandler.AuditTrail)
				r.Post("/transition", claimHandler.Transition)
				r.Post("/dependencies", claimHandler.AddDependency)
				r.Get("/dependencies", claimHandler.Dependencies)
				r.Get("/dependents", claimHandler.Dependents)
				r.Post("/invalidate", claimHandler.Invalidate)
			})
		})

		r.Route("/checkpoints", func(r chi.Router) {
			r.Post("/", checkpointHandler.Create)
			r.Get("/", checkpointHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", checkpointHandler.Get)
				r.Delete("/", checkpointHandler.Delete)
				r.Post("/rollback", checkpointHandler.Rollback)
			})
		})

		r.Route("/facts", func(r chi.Router) {
			r.Post("/extract", factHandler.Extract)
			r.Get("/relevant", factHandler.Relevant)
			r.Get("/pending", factHandler.Pending)
			r.Post("/{id}/verify", factHandler.Verify)
		})
	})

	return app
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := app.backend.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "store": app.backend.Driver})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":  uptime.Seconds(),
			"uptime_human":    uptime.Round(time.Second).String(),
			"request_count":   app.requestCount.Load(),
			"error_count":     app.errorCount.Load(),
			"server_errors":   app.metrics.ServerErrors(),
			"in_flight":       app.metrics.InFlight(),
			"active_streams":  app.services.Hub.Active(),
			"council_members": app.services.Council.Len(),
			"branches":        app.services.Branches.Branches(),
			"goroutines":      runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
