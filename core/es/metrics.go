package es

import "github.com/MyndPhreak/gamerp/core/metrics"

// Metrics defines the instrumentation surface of the event-sourcing core.
// All methods return Timers or increment counters; implementations must be
// thread-safe.
type Metrics interface {
	// Store operations
	StoreAppendDuration(aggType string) metrics.Timer
	StoreReadDuration(aggType string) metrics.Timer
	EventsAppended(aggType string, count int)

	// Repository operations
	RepoLoadDuration(aggType string) metrics.Timer
	RepoSaveDuration(aggType string) metrics.Timer
	ConcurrencyConflict(aggType string)

	// Bus + subscribers
	BusPublishDuration(eventType string) metrics.Timer
	SubscriberEventProcessed(subscriber string, eventType string, success bool)

	// Consumers
	ConsumerCatchUpEvents(consumer string, count int)
}

// nopMetrics is a no-op implementation of Metrics.
type nopMetrics struct{}

func (nopMetrics) StoreAppendDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) StoreReadDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopMetrics) EventsAppended(string, int)               {}

func (nopMetrics) RepoLoadDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) RepoSaveDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) ConcurrencyConflict(string)            {}

func (nopMetrics) BusPublishDuration(string) metrics.Timer       { return metrics.NopTimer() }
func (nopMetrics) SubscriberEventProcessed(string, string, bool) {}

func (nopMetrics) ConsumerCatchUpEvents(string, int) {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }

// MetricsOption sets the metrics for es components.
type MetricsOption struct{ m Metrics }

// WithMetrics sets the metrics implementation for es components.
func WithMetrics(m Metrics) MetricsOption { return MetricsOption{m: m} }
