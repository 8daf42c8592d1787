package authz

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects authorization counters. A nil *Metrics disables
// collection, so wiring it is optional in tests.
type Metrics struct {
	decisions *prometheus.CounterVec
	cache     *prometheus.CounterVec
}

// NewMetrics registers authorization metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_authz_decisions_total",
		Help: "Authorization decisions by outcome.",
	}, []string{"outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_authz_permission_cache_total",
		Help: "Permission cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(decisions, cache)
	return &Metrics{decisions: decisions, cache: cache}
}

func (m *Metrics) decision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) cacheLookup(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}
