// Package metrics provides Prometheus instrumentation for the prediction engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksIngested counts accepted price ticks per exchange.
	TicksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predict_ticks_ingested_total",
		Help: "Accepted price ticks per exchange",
	}, []string{"exchange"})

	// TicksStale counts ticks rejected by the price cache as out of order.
	TicksStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predict_ticks_stale_total",
		Help: "Price ticks dropped as older than the stored point",
	})

	// PredictionsOpened counts positions opened, partitioned by direction.
	PredictionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predict_positions_opened_total",
		Help: "Prediction positions opened",
	}, []string{"direction"})

	// PredictionsLiquidated counts positions force-closed by liquidation.
	PredictionsLiquidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predict_positions_liquidated_total",
		Help: "Prediction positions closed by liquidation",
	})

	// PredictionsSettled counts time-settled positions by outcome.
	PredictionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predict_positions_settled_total",
		Help: "Prediction positions closed by time settlement",
	}, []string{"outcome"})

	// OpenPositions tracks the number of currently open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predict_open_positions",
		Help: "Currently open prediction positions",
	})

	// MonitorDrops counts liquidation-check notifications dropped because
	// the monitor queue was full.
	MonitorDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predict_monitor_drops_total",
		Help: "Price notifications dropped by the liquidation monitor queue",
	})

	// BroadcastDrops counts bus events dropped for slow subscribers.
	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predict_broadcast_drops_total",
		Help: "Events dropped for slow broadcast subscribers",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predict_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predict_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predict_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the path label so per-user URLs do
		// not grow label cardinality unboundedly.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
