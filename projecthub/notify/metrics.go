package notify

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ChannelInApp = "in_app"
	ChannelPush  = "push"
	ChannelEmail = "email"
)

const (
	OutcomeSent       = "sent"
	OutcomeFailed     = "failed"
	OutcomeSuppressed = "suppressed"
)

// Metrics counts notification delivery outcomes per channel. The registry is
// private so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_outcomes_total",
			Help: "Notification delivery outcomes by channel.",
		}, []string{"channel", "outcome"}),
	}
}

func (m *Metrics) Record(channel, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.outcomes.WithLabelValues(channel, outcome).Add(float64(count))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
