// Package metrics provides Prometheus instrumentation for the level engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by transaction kind.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_trades_total",
		Help: "Total number of trades executed",
	}, []string{"kind"})

	// TradeRejections counts orders rejected before reaching the ledger or
	// by the ledger itself.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_trade_rejections_total",
		Help: "Orders rejected, by reason",
	}, []string{"reason"})

	// LevelCompletions counts completed levels.
	LevelCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_level_completions_total",
		Help: "Levels completed",
	}, []string{"level"})

	// CurrentLevel is the learner's current level.
	CurrentLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_current_level",
		Help: "Current progression level",
	})

	// PortfolioValue is the total value of the active level portfolio.
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_portfolio_value",
		Help: "Total value of the active portfolio",
	})

	// PersistFailures counts snapshot writes that failed.
	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_persist_failures_total",
		Help: "Snapshot writes that failed",
	}, []string{"kind"})

	// QuoteFailures counts quote lookups that failed, by source.
	QuoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_quote_failures_total",
		Help: "Quote lookups that failed",
	}, []string{"source"})

	// SimulationTicks counts simulated market days.
	SimulationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradequest_simulation_ticks_total",
		Help: "Simulated market days elapsed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradequest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradequest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradequest_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps the path label low-cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
