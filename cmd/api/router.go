package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-b2b/internal/auth"
	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/health"
	"github.com/noah-isme/backend-b2b/internal/listing"
	"github.com/noah-isme/backend-b2b/internal/obs"
	"github.com/noah-isme/backend-b2b/internal/ratelimit"
	"github.com/noah-isme/backend-b2b/internal/security"
)

type routerDeps struct {
	Logger         zerolog.Logger
	Listings       *listing.Handler
	Health         health.Handler
	Auth           auth.Middleware
	Idem           common.Idem
	TierEdit       ratelimit.Handler
	CalculatorRate *limiter.Limiter
	HTTPMetrics    *obs.HTTPMetrics
	Tracing        bool
	Metrics        bool
	CORSOrigins    []string
	BodyLimit      int64
	Headers        security.Headers
	Pprof          http.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger, Skip: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(d.Headers.Middleware)
	r.Use(security.BodyLimit{Max: d.BodyLimit, RequireJSON: true}.Middleware)
	r.Use(middleware.Timeout(15 * time.Second))

	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}

	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	calculatorLimit := func(next http.Handler) http.Handler { return next }
	if d.CalculatorRate != nil {
		calculatorLimit = ratelimit.PerIP(d.CalculatorRate, func(err error) {
			d.Logger.Warn().Err(err).Msg("calculator rate limiter unavailable")
		})
	}

	h := d.Listings
	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/pricing", func(p chi.Router) {
			p.Get("/ranges", h.Ranges)
			p.With(calculatorLimit).Post("/market-price", h.MarketPrice)
		})

		v.Route("/listings", func(l chi.Router) {
			l.Use(d.Auth.RequireAuth)
			l.Group(func(owner chi.Router) {
				owner.Use(auth.RequireRole(common.RoleBusinessOwner))
				owner.Post("/", h.Create)
				owner.Get("/", h.List)
			})
			l.Route("/{id}", func(item chi.Router) {
				item.Get("/", h.Get)
				item.Get("/tiers", h.Summary)
				item.Get("/quote", h.Quote)
				item.Put("/b2b", h.SetB2B)
				item.Put("/tiers/selected", h.SelectTier)
				item.With(d.TierEdit.Middleware).Put("/tiers/{range}", h.SetSellerPrice)
				item.With(d.Idem.Middleware).Post("/save", h.Save)
				item.Delete("/draft", h.DiscardDraft)
			})
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
