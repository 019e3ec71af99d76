package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pilacorp/go-keypass-sdk/chain"
	"github.com/pilacorp/go-keypass-sdk/verifier"
)

const metricsNamespace = "keypass"

// Metrics holds the collectors of one server. Each server owns its registry
// so that tests can create servers side by side.
type Metrics struct {
	registry      *prometheus.Registry
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	challenges    *prometheus.CounterVec
}

// NewMetrics registers the verification collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verifications_total",
			Help:      "Signature verifications by response code and chain type.",
		}, []string{"code", "chain"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "verification_duration_seconds",
			Help:      "Time spent verifying a signature.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"chain"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "challenges_issued_total",
			Help:      "Challenge messages issued by chain type.",
		}, []string{"chain"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.verifications,
		m.duration,
		m.challenges,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeVerification(code verifier.Code, family chain.Family, elapsed time.Duration) {
	label := chainLabel(family)
	m.verifications.WithLabelValues(string(code), label).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (m *Metrics) observeChallenge(family chain.Family) {
	m.challenges.WithLabelValues(chainLabel(family)).Inc()
}

func chainLabel(family chain.Family) string {
	if family == "" {
		return "unknown"
	}
	return family.String()
}
