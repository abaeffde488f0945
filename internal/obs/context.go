package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// RouteOf returns the low-cardinality route label for r: the stored pattern,
// else chi's matched pattern, else fallback. Call it after the handler ran so
// chi has resolved the route.
func RouteOf(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

// listingAttrs returns the listing id and tier range URL params, if any.
func listingAttrs(r *http.Request) (listingID, tierRange string) {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return "", ""
	}
	return rc.URLParam("id"), rc.URLParam("range")
}
