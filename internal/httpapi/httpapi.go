// Package httpapi is the chi-routed HTTP/auth surface from spec §4.8: one
// router, role-gated route groups, a bearer-token auth middleware, and the
// SSE push stream. Handlers stay thin and delegate to the domain packages
// (ingestion, logstore, engine via ingestion, report, simulator).
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alibi/internal/audit"
	"alibi/internal/domain"
	"alibi/internal/hub"
	"alibi/internal/identity"
	"alibi/internal/ingestion"
	"alibi/internal/platform/config"
	"alibi/internal/platform/metrics"
	"alibi/internal/ratelimit"
	"alibi/internal/watchlist"
)

// IncidentStore is the read/write surface the HTTP layer needs over
// incidents, beyond what ingestion already exposes. *logstore.Store
// satisfies this directly.
type IncidentStore interface {
	GetIncident(id string) (domain.Incident, *domain.IncidentMetadata, error)
	PutIncident(domain.Incident, *domain.IncidentMetadata) error
	ListIncidents() []domain.Incident
	AppendDecision(domain.Decision) error
}

// ReportGenerator produces the shift report aggregate. *report.Generator
// satisfies this.
type ReportGenerator interface {
	Generate(ctx context.Context, startTS, endTS time.Time) (any, error)
}

// SimController starts, stops and replays the event simulator.
// *simulator.Simulator satisfies this.
type SimController interface {
	Start(scenario string, ratePerMinute float64, seed int64) (any, error)
	Stop() (any, error)
	Status() any
	Replay(ctx context.Context, data []byte) (any, error)
}

// Deps bundles every collaborator the HTTP layer needs.
type Deps struct {
	Users       *identity.UserStore
	Tokens      *identity.TokenService
	Incidents   IncidentStore
	Pipeline    *ingestion.Pipeline
	Settings    *config.Store
	Metrics     *metrics.Metrics
	Audit       *audit.Service
	Watchlist   *watchlist.Store
	Report      ReportGenerator
	Simulator   SimController
	Hub         *hub.Hub
	RateLimiter *ratelimit.Limiter
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter builds the full chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger, d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := &handlers{d: d}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/auth/me", h.me)
		r.Post("/auth/change-password", h.changePassword)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleAdmin))
			r.Get("/auth/users", h.listUsers)
			r.Post("/auth/users", h.createUser)
			r.Delete("/auth/users/{username}", h.disableUser)

			r.Get("/watchlist", h.listWatchlist)
			r.Post("/watchlist", h.createWatchlistEntry)
			r.Delete("/watchlist/{id}", h.disableWatchlistEntry)

			r.Put("/settings", h.putSettings)
			r.Post("/sim/start", h.simStart)
			r.Post("/sim/stop", h.simStop)
			r.Post("/sim/replay", h.simReplay)
			r.Get("/sim/status", h.simStatus)
		})

		r.Get("/settings", h.getSettings)

		r.With(rateLimited(d.RateLimiter, d.Settings)).Post("/webhook/camera-event", h.ingestEvent)
		r.Get("/incidents", h.listIncidents)
		r.Get("/incidents/{id}", h.getIncident)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleOperator))
			r.Post("/incidents/{id}/decision", h.recordDecision)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireRole(domain.RoleSupervisor))
			r.Post("/incidents/{id}/approve", h.approveIncident)
		})

		r.Post("/reports/shift", h.shiftReport)
	})

	// The push stream authenticates via the same middleware, which also
	// accepts ?token= since browser EventSource clients cannot set an
	// Authorization header.
	r.With(h.authenticate).Get("/stream/incidents", h.streamIncidents)

	return r
}

func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			m.ObserveEndpointLatency(r.URL.Path, elapsed.Seconds())
			logger.InfoContext(r.Context(), "http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
