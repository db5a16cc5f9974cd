package webui

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the console's own surface. The backend client carries
// its own set; these cover what happens in front of it.
type Metrics struct {
	wsClients     prometheus.Gauge
	loginAttempts *prometheus.CounterVec
}

// NewMetrics creates the console metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		wsClients: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cmconsole_ws_clients",
			Help: "Currently connected live-update WebSocket clients.",
		}),

		loginAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cmconsole_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeLogin(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}
