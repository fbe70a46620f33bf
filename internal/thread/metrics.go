package thread

import "github.com/prometheus/client_golang/prometheus"

// Metrics - счетчики движка. Нулевой указатель допустим и ничего не считает.
type Metrics struct {
	mutations    *prometheus.CounterVec
	replyFetches *prometheus.CounterVec
}

// NewMetrics регистрирует счетчики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comment_thread_mutations_total",
			Help: "Optimistic comment mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		replyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comment_thread_reply_fetches_total",
			Help: "Reply fetches by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.mutations, m.replyFetches)
	return m
}

func (m *Metrics) mutation(op string, o Outcome) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, o.String()).Inc()
}

func (m *Metrics) replyFetch(result string) {
	if m == nil {
		return
	}
	m.replyFetches.WithLabelValues(result).Inc()
}
