package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProviderMetrics exposes counters/histograms for chat completion calls.
type ProviderMetrics struct {
	callsTotal *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	m := &ProviderMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientsim",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total chat completion calls by provider family",
		}, []string{"family", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patientsim",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of chat completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.latency)
	return m
}

func (m *ProviderMetrics) ObserveCall(family string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.callsTotal.WithLabelValues(family, status).Inc()
	m.latency.WithLabelValues(family).Observe(seconds)
}

// SimulationMetrics counts turns and finished runs.
type SimulationMetrics struct {
	turnsTotal *prometheus.CounterVec
	runsTotal  *prometheus.CounterVec
}

func NewSimulationMetrics(reg prometheus.Registerer) *SimulationMetrics {
	m := &SimulationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientsim",
			Subsystem: "simulation",
			Name:      "turns_total",
			Help:      "Total transcript turns appended by role",
		}, []string{"role"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patientsim",
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total simulation runs by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.runsTotal)
	return m
}

func (m *SimulationMetrics) ObserveTurn(role string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(role).Inc()
}

func (m *SimulationMetrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}
