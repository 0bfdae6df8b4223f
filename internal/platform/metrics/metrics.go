package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the guardianship service.
type Metrics struct {
	Commands         *prometheus.CounterVec
	ComplianceChecks prometheus.Counter
	VersionConflicts prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "walezi_guardianship_commands_total",
			Help: "Guardianship commands by name and outcome",
		}, []string{"command", "outcome"}),
		ComplianceChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_compliance_checks_total",
			Help: "Compliance recomputations run against aggregates",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_version_conflicts_total",
			Help: "Optimistic-concurrency conflicts surfaced to callers",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_status_cache_hits_total",
			Help: "Compliance-status reads served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_status_cache_misses_total",
			Help: "Compliance-status reads that recomputed",
		}),
	}
}

// RecordCommand counts one command outcome.
func (m *Metrics) RecordCommand(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
}
