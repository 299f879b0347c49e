package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for the dialogue engine.
type AssistantMetrics struct {
	turnsTotal      *prometheus.CounterVec
	functionsTotal  *prometheus.CounterVec
	llmLatency      prometheus.Histogram
	catalogRefresh  *prometheus.CounterVec
	sessionsExpired prometheus.Counter
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meddist",
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Total dialogue turns by outcome",
		}, []string{"outcome"}),
		functionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meddist",
			Subsystem: "assistant",
			Name:      "function_calls_total",
			Help:      "Structured function invocations by name and status",
		}, []string{"function", "status"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meddist",
			Subsystem: "assistant",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM chat completion calls",
			Buckets:   prometheus.DefBuckets,
		}),
		catalogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meddist",
			Subsystem: "catalog",
			Name:      "refresh_total",
			Help:      "Catalog snapshot refreshes by kind and status",
		}, []string{"kind", "status"}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meddist",
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Sessions removed by the TTL sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.functionsTotal, m.llmLatency, m.catalogRefresh, m.sessionsExpired)
	return m
}

func (m *AssistantMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *AssistantMetrics) ObserveFunctionCall(function, status string) {
	if m == nil {
		return
	}
	m.functionsTotal.WithLabelValues(function, status).Inc()
}

func (m *AssistantMetrics) ObserveLLMLatency(seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(seconds)
}

func (m *AssistantMetrics) ObserveCatalogRefresh(kind, status string) {
	if m == nil {
		return
	}
	m.catalogRefresh.WithLabelValues(kind, status).Inc()
}

func (m *AssistantMetrics) ObserveSessionsExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsExpired.Add(float64(count))
}
