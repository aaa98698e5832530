// Package http assembles the HTTP surface: middleware stack, auth routes,
// health probes, and the metrics endpoint.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutorbase/internal/platform/config"
	"tutorbase/internal/platform/health"
	"tutorbase/internal/platform/metrics"
	"tutorbase/internal/platform/middleware"
	"tutorbase/internal/transport/http/auth"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Config       config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Health       *health.Handler
	Onboarding   auth.OnboardingService
	Verification auth.VerificationService
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Session(deps.Config.Identity.JWTSigningKey))
	if deps.Metrics != nil {
		r.Use(latency(deps.Metrics))
	}

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler := auth.NewHandler(deps.Onboarding, deps.Verification, deps.Logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/signin", authHandler.SignIn)
		r.Get("/session", authHandler.Session)
		r.Get("/verify", authHandler.Verify)
	})

	return r
}

// latency observes per-route request duration, labeled by route pattern so
// cardinality stays bounded.
func latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.EndpointLatency.With(prometheus.Labels{"endpoint": pattern}).Observe(time.Since(start).Seconds())
		})
	}
}
