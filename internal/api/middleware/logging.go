// Package middleware carries the HTTP layer's cross-cutting concerns:
// request logging and CORS.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"turn-orchestrator/internal/logging"
)

type contextKey string

// RequestIDKey is the context key the logging middleware stores the
// per-request trace id under.
const RequestIDKey contextKey = "request_id"

// Logging returns middleware that tags every request with a trace id
// (reusing an inbound X-Request-ID if present), logs its start/end via
// log, and echoes the id back as a response header.
func Logging(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, logging.TraceIDKey, requestID)
			r = r.WithContext(ctx)

			scoped := log.WithTraceID(requestID)
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			scoped.InfoContext(ctx, "request started", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(ww, r)
			scoped.InfoContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path,
				"status", ww.status, "duration_ms", time.Since(start).Milliseconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// RequestIDFromContext extracts the trace id stashed by Logging.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
