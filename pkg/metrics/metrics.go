package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

const (
	RejectNoAvailableSeat = "no_available_seat"
	RejectSlotNotFound    = "slot_not_found"

	ExpirySourceTimer = "timer"
	ExpirySourceSweep = "sweep"
)

var (
	admittedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "admitted_total",
			Help:      "Count of reservations admitted in PENDING state.",
		},
	)
	rejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "rejected_total",
			Help:      "Count of admission attempts rejected, by reason.",
		},
		[]string{"reason"},
	)
	confirmCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "confirm_total",
			Help:      "Count of confirm attempts, by resulting status.",
		},
		[]string{"status", "already_processed"},
	)
	expiredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "expired_total",
			Help:      "Count of PENDING reservations demoted to FAILED after their grace period, by source.",
		},
		[]string{"source"},
	)
	invariantViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "invariant_violations_total",
			Help:      "Count of times more active reservations than capacity were observed under the slot lock.",
		},
	)
	armedTimers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reclaimer",
			Name:      "armed_timers",
			Help:      "Number of in-memory expiry timers currently armed.",
		},
	)
	kafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Count of Kafka messages handled, by direction and result.",
		},
		[]string{"direction", "topic", "result"},
	)
	kafkaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "message_duration_seconds",
			Help:      "Time spent publishing or handling a Kafka message.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"direction"},
	)
)

var registerMetrics sync.Once

// Register all metrics with the default registry.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(
			admittedCounter,
			rejectedCounter,
			confirmCounter,
			expiredCounter,
			invariantViolations,
			armedTimers,
			kafkaMessages,
			kafkaDuration,
		)
	})
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAdmitted() {
	admittedCounter.Inc()
}

func RecordRejected(reason string) {
	rejectedCounter.WithLabelValues(reason).Inc()
}

func RecordConfirm(status string, alreadyProcessed bool) {
	processed := "false"
	if alreadyProcessed {
		processed = "true"
	}
	confirmCounter.WithLabelValues(status, processed).Inc()
}

func RecordExpired(source string, n int) {
	if n <= 0 {
		return
	}
	expiredCounter.WithLabelValues(source).Add(float64(n))
}

func RecordInvariantViolation() {
	invariantViolations.Inc()
}

func SetArmedTimers(n int) {
	armedTimers.Set(float64(n))
}

func RecordKafkaMessage(direction, topic string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	kafkaMessages.WithLabelValues(direction, topic, result).Inc()
	kafkaDuration.WithLabelValues(direction).Observe(seconds)
}
