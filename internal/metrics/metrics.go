package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scheduling"

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Count of reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Count of cancelled appointments.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Count of lifecycle transitions by entity and target status.",
		},
		[]string{"entity", "to"},
	)

	gridCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cache_lookups_total",
			Help:      "Week grid cache lookups by result.",
		},
		[]string{"result"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reserve_duration_seconds",
			Help:      "Time spent inside Reserve, lock acquisition included.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, cancellations, transitions, gridCache, lockWait)
	})
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncCancellation() {
	cancellations.Inc()
}

func IncTransition(entity, to string) {
	transitions.WithLabelValues(entity, to).Inc()
}

func IncGridCache(hit bool) {
	if hit {
		gridCache.WithLabelValues("hit").Inc()
		return
	}
	gridCache.WithLabelValues("miss").Inc()
}

func ObserveReserve(seconds float64) {
	lockWait.Observe(seconds)
}
