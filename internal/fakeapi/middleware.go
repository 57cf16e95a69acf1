package fakeapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const maxFormBytes = 1 << 20

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"client_request_id", r.Header.Get("X-Request-ID"),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// formMiddleware parses the form-encoded body before the handlers run
func (s *Server) formMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			s.fail(w, http.StatusBadRequest, "invalid form body")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the api_key form parameter. Any key is accepted
// when none is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.PostForm.Get("api_key")
		if key == "" {
			s.fail(w, http.StatusUnauthorized, "api_key is required")
			return
		}

		if s.config.APIKey != "" && key != s.config.APIKey {
			s.logger.Warn("unauthorized API request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			s.fail(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		if r.PostForm.Get("user_key") == "" {
			s.fail(w, http.StatusOK, "user_key is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
