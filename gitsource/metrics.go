package gitsource

import "github.com/prometheus/client_golang/prometheus"

type syncMetrics struct {
	cycles        prometheus.Counter
	skips         prometheus.Counter
	pushFailures  prometheus.Counter
	remoteChanges prometheus.Counter
}

func newSyncMetrics(registerer prometheus.Registerer) *syncMetrics {
	m := &syncMetrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deltabanana_sync_cycles_total",
			Help: "Sync cycles that performed repository I/O.",
		}),
		skips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deltabanana_sync_skips_total",
			Help: "Scheduled sync ticks skipped by the no-change policy.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deltabanana_push_failures_total",
			Help: "Push attempts that failed and left pending changes for retry.",
		}),
		remoteChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deltabanana_remote_changes_total",
			Help: "Sync cycles whose resulting revision differed from the cached one.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(m.cycles, m.skips, m.pushFailures, m.remoteChanges)
	}
	return m
}
