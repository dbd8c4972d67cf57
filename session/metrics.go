package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the observability sink for authentication outcomes. Failures
// are counted and logged, never fatal to the process.
type Metrics struct {
	registry *prometheus.Registry

	LoginsStarted     prometheus.Counter
	CallbackOutcomes  *prometheus.CounterVec
	SilentChecks      *prometheus.CounterVec
	CapabilityDenials prometheus.Counter
}

// NewMetrics registers the session metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LoginsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "baristad",
			Subsystem: "session",
			Name:      "logins_started_total",
			Help:      "Redirect logins begun.",
		}),
		CallbackOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baristad",
			Subsystem: "session",
			Name:      "callback_outcomes_total",
			Help:      "Redirect callback resolutions by outcome.",
		}, []string{"outcome"}),
		SilentChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baristad",
			Subsystem: "session",
			Name:      "silent_checks_total",
			Help:      "Boot-time silent session checks by result.",
		}, []string{"result"}),
		CapabilityDenials: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "baristad",
			Subsystem: "session",
			Name:      "capability_denials_total",
			Help:      "Capability checks answered false for an authenticated session.",
		}),
	}
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
