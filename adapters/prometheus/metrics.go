// Package prometheus implements the event-sourcing metrics surface on top
// of prometheus client primitives, exported under the ledger_ prefix.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/metrics"
)

var defaultBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

type Metrics struct {
	storeAppendDuration *prometheus.HistogramVec
	storeReadDuration   *prometheus.HistogramVec
	eventsAppended      *prometheus.CounterVec

	repoLoadDuration     *prometheus.HistogramVec
	repoSaveDuration     *prometheus.HistogramVec
	concurrencyConflicts *prometheus.CounterVec

	busPublishDuration *prometheus.HistogramVec
	subscriberEvents   *prometheus.CounterVec

	consumerCatchUpEvents *prometheus.CounterVec
}

// New builds and registers the ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		storeAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_store_append_duration_seconds",
			Help:    "Duration of event store appends.",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),
		storeReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_store_read_duration_seconds",
			Help:    "Duration of event store stream reads.",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),
		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_appended_total",
			Help: "Events committed to the store.",
		}, []string{"aggregate_type"}),

		repoLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_repo_load_duration_seconds",
			Help:    "Duration of aggregate rehydration.",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),
		repoSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_repo_save_duration_seconds",
			Help:    "Duration of aggregate saves including bus delivery.",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),
		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_concurrency_conflicts_total",
			Help: "Appends rejected by optimistic concurrency.",
		}, []string{"aggregate_type"}),

		busPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_bus_publish_duration_seconds",
			Help:    "Duration of synchronous fan-out per event.",
			Buckets: defaultBuckets,
		}, []string{"event_type"}),
		subscriberEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_subscriber_events_total",
			Help: "Events processed per subscriber, by outcome.",
		}, []string{"subscriber", "event_type", "outcome"}),

		consumerCatchUpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_consumer_catch_up_events_total",
			Help: "Events replayed during consumer catch-up.",
		}, []string{"consumer"}),
	}

	reg.MustRegister(
		m.storeAppendDuration,
		m.storeReadDuration,
		m.eventsAppended,
		m.repoLoadDuration,
		m.repoSaveDuration,
		m.concurrencyConflicts,
		m.busPublishDuration,
		m.subscriberEvents,
		m.consumerCatchUpEvents,
	)

	return m
}

type timer struct{ t *prometheus.Timer }

func (t timer) ObserveDuration() { t.t.ObserveDuration() }

func newTimer(o prometheus.Observer) metrics.Timer {
	return timer{t: prometheus.NewTimer(o)}
}

func (m *Metrics) StoreAppendDuration(aggType string) metrics.Timer {
	return newTimer(m.storeAppendDuration.WithLabelValues(aggType))
}

func (m *Metrics) StoreReadDuration(aggType string) metrics.Timer {
	return newTimer(m.storeReadDuration.WithLabelValues(aggType))
}

func (m *Metrics) EventsAppended(aggType string, count int) {
	m.eventsAppended.WithLabelValues(aggType).Add(float64(count))
}

func (m *Metrics) RepoLoadDuration(aggType string) metrics.Timer {
	return newTimer(m.repoLoadDuration.WithLabelValues(aggType))
}

func (m *Metrics) RepoSaveDuration(aggType string) metrics.Timer {
	return newTimer(m.repoSaveDuration.WithLabelValues(aggType))
}

func (m *Metrics) ConcurrencyConflict(aggType string) {
	m.concurrencyConflicts.WithLabelValues(aggType).Inc()
}

func (m *Metrics) BusPublishDuration(eventType string) metrics.Timer {
	return newTimer(m.busPublishDuration.WithLabelValues(eventType))
}

func (m *Metrics) SubscriberEventProcessed(subscriber, eventType string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.subscriberEvents.WithLabelValues(subscriber, eventType, outcome).Inc()
}

func (m *Metrics) ConsumerCatchUpEvents(consumer string, count int) {
	m.consumerCatchUpEvents.WithLabelValues(consumer).Add(float64(count))
}

var _ es.Metrics = (*Metrics)(nil)
