package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Metrics instruments the backend client. Register against the process
// registry in serve mode; a nil registerer yields an unconnected local
// registry so library callers pay nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	breakerState    prometheus.Gauge
}

// NewMetrics creates the client metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmconsole_backend_requests_total",
			Help: "Backend API calls by operation, status code and outcome.",
		}, []string{"op", "status", "outcome"}),

		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmconsole_backend_request_duration_seconds",
			Help:    "Backend API call latency by operation.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),

		breakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cmconsole_backend_breaker_open",
			Help: "1 while the backend circuit breaker is open, 0 otherwise.",
		}),
	}
}

func (m *Metrics) observe(op string, status int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requestsTotal.WithLabelValues(op, strconv.Itoa(status), outcome).Inc()
	m.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) setBreakerState(state gobreaker.State) {
	if state == gobreaker.StateOpen {
		m.breakerState.Set(1)
		return
	}
	m.breakerState.Set(0)
}
