// Package metrics exposes the billing pipeline's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Metrics holds the application-level counters. Label cardinality is kept
// to fixed enums so scrapes stay cheap.
type Metrics struct {
	Registry *prometheus.Registry

	usageRecorded      prometheus.Counter
	usageRejected      *prometheus.CounterVec
	settlementOutcomes *prometheus.CounterVec
	cronRuns           *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: registry,
		usageRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "usage_events_recorded_total",
			Help: "Usage events accepted into the ledger.",
		}),
		usageRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_events_rejected_total",
			Help: "Usage events rejected at validation, by reason.",
		}, []string{"reason"}),
		settlementOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Scheduled charge dispatch outcomes.",
		}, []string{"outcome"}),
		cronRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_runs_total",
			Help: "Cron-triggered driver runs, by job and result.",
		}, []string{"job", "status"}),
	}
	registry.MustRegister(m.usageRecorded, m.usageRejected, m.settlementOutcomes, m.cronRuns)
	return m
}

func (m *Metrics) UsageRecorded() {
	m.usageRecorded.Inc()
}

func (m *Metrics) UsageRejected(reason string) {
	m.usageRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SettlementOutcome(outcome string) {
	m.settlementOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CronRun(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.cronRuns.WithLabelValues(job, status).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
