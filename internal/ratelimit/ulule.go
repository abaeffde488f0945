package ratelimit

import (
	"net/http"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/noah-isme/backend-b2b/internal/common"
)

// NewFixedWindow builds a ulule limiter from a formatted rate such as "300-M".
func NewFixedWindow(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// PerIP returns middleware limiting anonymous traffic by client address.
func PerIP(l *limiter.Limiter, onError func(error)) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(ClientIPKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.WriteError(w, common.NewAppError("RATE_LIMITED", "too many price calculations", http.StatusTooManyRequests, nil))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			if onError != nil {
				onError(err)
			}
			common.WriteError(w, common.NewAppError("RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable", http.StatusServiceUnavailable, nil))
		}),
	)
	return mw.Handler
}
