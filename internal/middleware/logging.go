package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyai-backend/internal/logger"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", r.Header.Get(RequestIDHeader),
				"remote_addr", r.RemoteAddr,
			}

			switch {
			case status >= 500:
				log.Error("request", kv...)
			case status >= 400:
				log.Warn("request", kv...)
			default:
				log.Info("request", kv...)
			}
		})
	}
}
