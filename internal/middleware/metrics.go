package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver records request metrics.
type HTTPObserver interface {
	TrackInFlight() func()
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Metrics records request count, latency and in-flight requests, labelled
// by the matched chi route pattern rather than the raw path.
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := obs.TrackInFlight()
			defer done()

			start := time.Now()
			rw := wrapped(w)
			next.ServeHTTP(rw, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			obs.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		})
	}
}
