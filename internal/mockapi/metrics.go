package mockapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests    *prometheus.CounterVec
	snapshot    prometheus.Histogram
	snapshotErr prometheus.Counter
	passthrough prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "newslens",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests handled by the router, by operation and status code.",
			},
			[]string{"operation", "status"},
		),
		snapshot: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "newslens",
				Subsystem: "store",
				Name:      "snapshot_write_seconds",
				Help:      "Duration of mutations including the snapshot write.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		snapshotErr: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "newslens",
				Subsystem: "store",
				Name:      "snapshot_errors_total",
				Help:      "Snapshot writes that failed.",
			},
		),
		passthrough: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "newslens",
				Subsystem: "api",
				Name:      "passthrough_total",
				Help:      "Outgoing requests forwarded to the network untouched.",
			},
		),
	}
}

func (m *metrics) observe(op Operation, status int) {
	m.requests.WithLabelValues(op.String(), strconv.Itoa(status)).Inc()
}

func (m *metrics) observeSnapshot(start time.Time, err error) {
	m.snapshot.Observe(time.Since(start).Seconds())
	if err != nil {
		m.snapshotErr.Inc()
	}
}
