package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/claytondukes/dibo-gems/internal/logging"
	"github.com/claytondukes/dibo-gems/internal/observability"
)

const requestIDHeader = "X-Request-ID"

type loggerKey struct{}

// RequestLogger logs each request with its status and latency, tags it with
// a request ID and records a latency histogram. Handlers reach the
// request-scoped logger through the request context.
func RequestLogger(next http.Handler, logger *slog.Logger, metrics observability.MetricsCollector) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	if metrics == nil {
		metrics = observability.NopCollector{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := logger.With("request_id", requestID)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, reqLogger))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.Collect(observability.Metric{
			Name:        "http_request_duration_seconds",
			Type:        observability.MetricHistogram,
			Value:       elapsed.Seconds(),
			Labels:      map[string]string{"method": r.Method, "route": route, "status": strconv.Itoa(rec.status)},
			Description: "HTTP request latency",
		})

		reqLogger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return logging.Discard()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
