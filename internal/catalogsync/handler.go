package catalogsync

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-b2b/internal/obs"
	"github.com/noah-isme/backend-b2b/internal/resilience"
)

const signatureHeader = "X-Catalog-Signature"

// Doer is satisfied by resilience.HTTPClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Handler delivers listing:sync tasks to the catalog service.
type Handler struct {
	HTTP     Doer
	Endpoint string
	Secret   string
	Logger   zerolog.Logger

	attempts metric.Int64Counter
}

// NewHandler constructs a Handler and registers its OpenTelemetry counter.
func NewHandler(client Doer, endpoint, secret string, logger zerolog.Logger) *Handler {
	h := &Handler{HTTP: client, Endpoint: endpoint, Secret: secret, Logger: obs.Component(logger, "catalogsync")}
	counter, err := otel.Meter("catalogsync").Int64Counter("catalog_sync_attempts",
		metric.WithDescription("Catalog sync delivery attempts by outcome."))
	if err == nil {
		h.attempts = counter
	}
	return h
}

// NewHTTPClient returns an instrumented client wrapped with retries and a
// circuit breaker.
func NewHTTPClient(timeout, retryBase time.Duration, attempts int, jitter float64, breaker *resilience.Breaker) resilience.HTTPClient {
	if breaker == nil {
		breaker = resilience.NewBreaker(10, 0.5, 30*time.Second)
	}
	return resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: timeout},
		Breaker:     breaker.WithTarget("catalog-sync"),
		BaseBackoff: retryBase,
		MaxBackoff:  timeout,
		MaxAttempts: attempts,
		Jitter:      jitter,
		Timeout:     timeout,
	}
}

// ProcessTask implements asynq.Handler. Client errors other than 429 are not
// retried; everything else is left to asynq's retry schedule.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("catalogsync: decode task: %w: %w", err, asynq.SkipRetry)
	}
	if h.Endpoint == "" {
		h.Logger.Warn().Str("listing_id", p.ListingID).Msg("catalog_sync_disabled")
		return nil
	}
	body := t.Payload()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("catalogsync: build request: %w: %w", err, asynq.SkipRetry)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.EventID)
	if h.Secret != "" {
		req.Header.Set(signatureHeader, Sign(h.Secret, body))
	}

	start := time.Now()
	resp, err := h.HTTP.Do(ctx, req)
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		result := "error"
		if errors.Is(err, resilience.ErrOpenCircuit) {
			result = "circuit_open"
		}
		h.record(ctx, result, elapsed)
		h.Logger.Error().Err(err).Str("listing_id", p.ListingID).Msg("catalog_sync_failed")
		return fmt.Errorf("catalogsync: deliver: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		h.record(ctx, "ok", elapsed)
		h.Logger.Info().Str("listing_id", p.ListingID).Str("topic", p.Topic).Msg("catalog_sync_delivered")
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		h.record(ctx, "throttled", elapsed)
		return errors.New("catalogsync: catalog throttled the request")
	case resp.StatusCode < 500:
		h.record(ctx, "rejected", elapsed)
		h.Logger.Error().Int("status", resp.StatusCode).Str("listing_id", p.ListingID).Msg("catalog_sync_rejected")
		return fmt.Errorf("catalogsync: catalog rejected listing with %d: %w", resp.StatusCode, asynq.SkipRetry)
	default:
		h.record(ctx, "error", elapsed)
		return fmt.Errorf("catalogsync: catalog returned %d", resp.StatusCode)
	}
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) record(ctx context.Context, result string, ms float64) {
	obs.ObserveCatalogSync(result, ms)
	if h.attempts != nil {
		h.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
