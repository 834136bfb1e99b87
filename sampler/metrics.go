package sampler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by clients.
// One Metrics value may be shared by many clients; a nil *Metrics is a no-op.
type Metrics struct {
	transportCalls *prometheus.CounterVec
	batchAttempts  *prometheus.CounterVec
	tokens         *prometheus.CounterVec
	cost           *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	choices        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transportCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sampler",
				Name:      "transport_calls_total",
				Help:      "Transport calls by backend and outcome, counting every retry",
			},
			[]string{"backend", "outcome"},
		),
		batchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sampler",
				Name:      "batch_attempts_total",
				Help:      "Batch attempts of multi-completion requests by outcome",
			},
			[]string{"outcome"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sampler",
				Name:      "tokens_total",
				Help:      "Tokens reported by the server",
			},
			[]string{"model", "kind"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sampler",
				Name:      "cost_total",
				Help:      "Estimated cost from per-1000-token rates",
			},
			[]string{"model"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sampler",
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
		choices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sampler",
			Name:      "choices_returned",
			Help:      "Choices returned per request",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
	for _, c := range []prometheus.Collector{m.transportCalls, m.batchAttempts, m.tokens, m.cost, m.cacheLookups, m.choices} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) transportCall(backend Backend, outcome string) {
	if m == nil {
		return
	}
	m.transportCalls.WithLabelValues(string(backend), outcome).Inc()
}

func (m *Metrics) batchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.batchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) usage(model string, u *Usage, costDelta float64) {
	if m == nil || u == nil {
		return
	}
	m.tokens.WithLabelValues(model, "prompt").Add(float64(max(u.PromptTokens, 0)))
	m.tokens.WithLabelValues(model, "completion").Add(float64(max(u.CompletionTokens, 0)))
	if costDelta > 0 {
		m.cost.WithLabelValues(model).Add(costDelta)
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) returned(n int) {
	if m == nil {
		return
	}
	m.choices.Observe(float64(n))
}
