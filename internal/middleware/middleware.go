package middleware

import (
	"net/http"
	"strings"
	"time"

	"sorter/internal/logger"
)

// CORSMiddleware lets browser dashboards on other origins call the API.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush and Hijack on the real writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// LoggingMiddleware logs API requests. Camera uploads, the live feed and static files
// are too chatty and are skipped.
func LoggingMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			log.Error("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
		} else if rec.status >= http.StatusBadRequest {
			log.Warning("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
		} else {
			log.Info("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}
