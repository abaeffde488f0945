package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-b2b/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a per-key sliding window before delegating to the next
// handler. Limiter failures are reported to OnError and the request proceeds.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Round(time.Second).Seconds())
			headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			common.WriteError(w, common.NewAppError("RATE_LIMITED", "too many tier price updates", http.StatusTooManyRequests, nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListingEditorKey keys edits by authenticated user and listing so one owner
// editing several listings gets an independent budget per listing.
func ListingEditorKey(r *http.Request) string {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		return ""
	}
	listingID := chi.URLParam(r, "id")
	return "tier-edit:" + userID + ":" + listingID
}

// ClientIPKey keys requests by the caller's address.
func ClientIPKey(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}
