// Package metrics provides Prometheus instrumentation for the market ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts markets created since process start.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_markets_created_total",
		Help: "Total number of markets created",
	})

	// MarketsResolved counts markets resolved since process start.
	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_markets_resolved_total",
		Help: "Total number of markets resolved",
	})

	// ActiveMarkets tracks the number of unresolved markets.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voucheo_active_markets",
		Help: "Number of currently unresolved markets",
	})

	// BetsTotal counts bets placed, partitioned by side.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucheo_bets_total",
		Help: "Total number of bets placed",
	}, []string{"side"})

	// StakeVolume accumulates staked amounts, partitioned by side.
	StakeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucheo_stake_volume_total",
		Help: "Cumulative staked amount in currency units",
	}, []string{"side"})

	// ClaimsTotal counts successful claims.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_claims_total",
		Help: "Total number of successful payout claims",
	})

	// PayoutsTotal accumulates claimed payout amounts.
	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_payouts_total",
		Help: "Cumulative claimed payout amount in currency units",
	})

	// FeesAccrued accumulates platform fees withheld at settlement.
	FeesAccrued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_fees_accrued_total",
		Help: "Cumulative platform fee withheld at settlement",
	})

	// PolicyRejections counts bets rejected by the stake limiter.
	PolicyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucheo_policy_rejections_total",
		Help: "Bets rejected by the stake limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voucheo_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucheo_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucheo_http_request_duration_seconds",
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

		path := r.URL.Path
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
