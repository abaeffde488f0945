package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-b2b/internal/pricing"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles the readiness flag. The API flips it to false when draining.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports the current readiness flag.
func IsReady() bool {
	return ready.Load()
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	Calculator   *pricing.Calculator
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

type readyResponse struct {
	DB      string        `json:"db"`
	Redis   string        `json:"redis"`
	Pricing *pricingState `json:"pricing,omitempty"`
}

type pricingState struct {
	CommissionRate string `json:"commissionRate"`
	DeliveryFee    string `json:"deliveryFee"`
	TaxRate        string `json:"taxRate"`
	FloorPrice     string `json:"floorPrice"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	status := readyResponse{DB: "ok", Redis: "ok"}
	if err := h.Checker.PingDB(ctx, h.dbTimeout()); err != nil {
		status.DB = err.Error()
	}
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		status.Redis = err.Error()
	}
	if h.Calculator != nil {
		rates := h.Calculator.Rates()
		status.Pricing = &pricingState{
			CommissionRate: rates.Commission.String(),
			DeliveryFee:    rates.DeliveryFee.String(),
			TaxRate:        rates.Tax.String(),
			FloorPrice:     h.Calculator.ComputeMarketPriceString("0"),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if status.DB != "ok" || status.Redis != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
