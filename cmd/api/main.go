package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-b2b/internal/app"
	"github.com/noah-isme/backend-b2b/internal/auth"
	"github.com/noah-isme/backend-b2b/internal/catalogsync"
	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/config"
	"github.com/noah-isme/backend-b2b/internal/events"
	"github.com/noah-isme/backend-b2b/internal/health"
	"github.com/noah-isme/backend-b2b/internal/listing"
	"github.com/noah-isme/backend-b2b/internal/lock"
	"github.com/noah-isme/backend-b2b/internal/obs"
	"github.com/noah-isme/backend-b2b/internal/ratelimit"
	"github.com/noah-isme/backend-b2b/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "b2b")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "b2b-api",
			ServiceVersion: envOrDefault("APP_VERSION", "dev"),
			Endpoint:       envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if envBool("DB_AUTO_MIGRATE", false) {
		if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := app.NewPool(startCtx, cfg.DatabaseURL, "b2b-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(startCtx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	taskClient := asynq.NewClient(taskOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store: events.PGStore{DB: pool},
		Notifiers: []events.Notifier{catalogsync.Enqueuer{
			Client:   taskClient,
			Queue:    catalogsync.Queue,
			MaxRetry: cfg.SyncMaxRetry,
			Logger:   obs.Component(logger, "catalogsync"),
		}},
	}

	calc := cfg.Calculator()
	listingService, err := listing.NewService(listing.ServiceConfig{
		Store:        listing.PGStore{DB: pool},
		Drafts:       listing.NewDraftStore(redisClient, cfg.DraftTTL),
		Locker:       lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetry},
		Bus:          bus,
		Calculator:   calc,
		Logger:       logger,
		LockTTL:      cfg.LockTTL,
		DefaultLimit: cfg.ListingPageSize,
		MaxLimit:     cfg.ListingMaxPage,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise listing service")
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: cfg.JWTClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}

	limiterStore, err := app.NewLimiterStore(redisClient, metricsNamespace+":limiter")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	calculatorLimiter, err := ratelimit.NewFixedWindow(limiterStore, cfg.CalculatorRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse calculator rate")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		pprofHandler = protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""))
	}

	handler := newRouter(routerDeps{
		Logger:   logger,
		Listings: listing.NewHandler(listing.HandlerConfig{Service: listingService, Logger: logger}),
		Health: health.Handler{
			Checker:      app.ReadinessChecker{DB: pool, Redis: redisClient},
			Calculator:   &calc,
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		Auth: auth.Middleware{Verifier: verifier, Realm: envOrDefault("AUTH_REALM", "b2b")},
		Idem: common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		TierEdit: ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: metricsNamespace + ":rl:"},
			Config:  ratelimit.Config{Key: ratelimit.ListingEditorKey, Window: cfg.TierEditRateWindow, Max: cfg.TierEditRateMax},
			OnError: func(err error) { logger.Warn().Err(err).Msg("tier edit rate limiter unavailable") },
		},
		CalculatorRate: calculatorLimiter,
		HTTPMetrics:    httpMetrics,
		Tracing:        tracingEnabled,
		Metrics:        metricsEnabled,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		BodyLimit:      cfg.BodyLimitBytes,
		Headers: security.Headers{
			Enable:        envBool("SECURE_HEADERS_ENABLED", true),
			EnableHSTS:    envBool("SECURE_HSTS_ENABLED", cfg.AppEnv == "production"),
			NoStore:       true,
			NoStoreExempt: []string{"/metrics", "/debug/pprof"},
		},
		Pprof: pprofHandler,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("HTTP_SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
		logger.Info().Msg("server stopped")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
