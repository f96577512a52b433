package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmi_http_requests_total",
			Help: "Total de requests HTTP atendidos",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmi_http_request_duration_seconds",
			Help:    "Duración de los requests HTTP en segundos",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Metrics cuenta requests y mide su duración por método/ruta/status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// normalizePath colapsa los segmentos variables para no disparar la
// cardinalidad de las métricas.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/tareas/"):
		return "/api/tareas/{tareaKey}"
	case strings.HasPrefix(path, "/api/archivo/"):
		return "/api/archivo/{archivoUUID}"
	case strings.HasPrefix(path, "/api/usuarios/") && strings.HasSuffix(path, "/password"):
		return "/api/usuarios/{id}/password"
	}
	return path
}
