package lookup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for lookup outcomes.
const (
	_outcomeOK    = "ok"
	_outcomeError = "error"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_lookups_total",
			Help: "Total number of blocking host lookups.",
		},
		[]string{"backend", "outcome"},
	)

	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loom_lookup_duration_seconds",
			Help:    "Blocking host lookup duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal)
	prometheus.MustRegister(lookupDuration)
}

var _ Backend = (*instrumented)(nil)

// instrumented decorates a Backend with lookup metrics.
type instrumented struct {
	name    string
	backend Backend
}

// Instrument wraps backend so every lookup is counted by outcome and its
// duration observed, labeled with the given backend name.
func Instrument(name string, backend Backend) Backend {
	return &instrumented{name: name, backend: backend}
}

// HostByName delegates to the wrapped backend and records the outcome.
func (i *instrumented) HostByName(hostname string) (string, error) {
	start := time.Now()
	addr, err := i.backend.HostByName(hostname)
	lookupDuration.WithLabelValues(i.name).Observe(time.Since(start).Seconds())

	outcome := _outcomeOK
	if err != nil {
		outcome = _outcomeError
	}
	lookupsTotal.WithLabelValues(i.name, outcome).Inc()

	return addr, err
}
