package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMiddleware creates a middleware that records HTTP request metrics of
// the fake API server
func HTTPMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			path := normalizePath(r)

			m.ServerRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(code)).Inc()
			m.ServerRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())

			if code >= 400 {
				m.ServerErrorsTotal.WithLabelValues(categorizeStatus(code)).Inc()
			}
		})
	}
}

// IncServerError counts an error that was reported inside a 200 envelope
func (m *Metrics) IncServerError(errorType string) {
	if m == nil {
		return
	}
	m.ServerErrorsTotal.WithLabelValues(errorType).Inc()
}

// normalizePath returns the chi route pattern to keep label cardinality low
func normalizePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}

// categorizeStatus categorizes HTTP status codes into error types
func categorizeStatus(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status == 429:
		return "rate_limited"
	case status == 401 || status == 403:
		return "auth_error"
	case status == 404:
		return "not_found"
	case status == 400:
		return "bad_request"
	case status >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
