// Package metrics implements ports.Metrics against Prometheus. All methods
// are nil-safe: calls on a nil *Metrics are no-ops, so tests and the
// in-memory bootstrap path can omit a registerer entirely.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	sessionsCreated    prometheus.Counter
	sessionsPreempted  prometheus.Counter
	sessionsTerminated *prometheus.CounterVec
	outboxEnqueued     prometheus.Counter
	outboxAcknowledged prometheus.Counter
	idempotencyHits    *prometheus.CounterVec
	adminOutcomes      *prometheus.CounterVec
}

// New creates and registers gateway metrics with reg. If reg is nil, the
// collectors are created but never registered, so the values are still
// exercised but not exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of trading-agent sessions created.",
		}),
		sessionsPreempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "sessions",
			Name:      "preempted_total",
			Help:      "Total number of sessions terminated by a newer session for the same credential.",
		}),
		sessionsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "sessions",
			Name:      "terminated_total",
			Help:      "Total number of sessions terminated, labeled by reason.",
		}, []string{"reason"}),
		outboxEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "outbox",
			Name:      "enqueued_total",
			Help:      "Total number of events enqueued onto any session outbox.",
		}),
		outboxAcknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "outbox",
			Name:      "acknowledged_total",
			Help:      "Total number of outbox events acknowledged.",
		}),
		idempotencyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "idempotency",
			Name:      "replay_total",
			Help:      "Total number of idempotency ledger replays, labeled by operation.",
		}, []string{"operation"}),
		adminOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "admin",
			Name:      "outcomes_total",
			Help:      "Total number of admin dispatcher outcomes, labeled by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.sessionsCreated,
			m.sessionsPreempted,
			m.sessionsTerminated,
			m.outboxEnqueued,
			m.outboxAcknowledged,
			m.idempotencyHits,
			m.adminOutcomes,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionPreempted() {
	if m == nil {
		return
	}
	m.sessionsPreempted.Inc()
}

func (m *Metrics) SessionTerminated(reason string) {
	if m == nil {
		return
	}
	m.sessionsTerminated.WithLabelValues(reason).Inc()
}

func (m *Metrics) OutboxEnqueued() {
	if m == nil {
		return
	}
	m.outboxEnqueued.Inc()
}

func (m *Metrics) OutboxAcknowledged() {
	if m == nil {
		return
	}
	m.outboxAcknowledged.Inc()
}

func (m *Metrics) IdempotencyHit(operation string) {
	if m == nil {
		return
	}
	m.idempotencyHits.WithLabelValues(operation).Inc()
}

func (m *Metrics) AdminOutcome(kind string) {
	if m == nil {
		return
	}
	m.adminOutcomes.WithLabelValues(kind).Inc()
}
