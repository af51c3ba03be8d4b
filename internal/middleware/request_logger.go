package middleware

import (
	"net/http"
	"time"

	"tarot-api/internal/logger"

	"github.com/sirupsen/logrus"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// LogRequest writes one structured access-log line per request.
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		start := time.Now()
		next.ServeHTTP(rw, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if uid := r.URL.Query().Get("uid"); uid != "" {
			fields["uid"] = uid
		}

		if rw.status >= 500 {
			logger.Logger.WithFields(fields).Error("Request failed")
		} else {
			logger.Logger.WithFields(fields).Info("Request handled")
		}
	})
}
