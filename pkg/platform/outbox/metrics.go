package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay throughput and failures.
type Metrics struct {
	Published       prometheus.Counter
	PublishFailures prometheus.Counter
	BatchDuration   prometheus.Histogram
}

// NewMetrics registers relay metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_outbox_published_total",
			Help: "Domain events successfully published to the bus",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "walezi_outbox_publish_failures_total",
			Help: "Publish attempts that failed and will be retried",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "walezi_outbox_batch_duration_seconds",
			Help:    "Time to drain one pending batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
