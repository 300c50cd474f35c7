package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request metrics and a debug log line per request.
func instrument(next http.Handler, metrics *instrumentation.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		d := time.Since(start)
		path := instrumentation.NormalizePath(r.URL.Path)
		metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, d)
		logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", rec.status),
			logging.Duration(d))
	})
}

// securityHeaders sets the security headers on every response.
func securityHeaders(next http.Handler, https bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, https)
		next.ServeHTTP(w, r)
	})
}
