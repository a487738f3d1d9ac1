package es

import (
	"context"
	"log/slog"
	"sync"
)

type busSubscriber struct {
	name  string
	types map[string]struct{} // empty: receives every event
	h     Handler
}

func (s *busSubscriber) matches(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Bus fans each committed event out, synchronously and in commit order, to
// every subscriber registered for its payload type. Delivery happens inside
// the committing Save call: a subscriber error is logged and counted but
// never rolls back the already-committed append.
type Bus struct {
	mu      sync.RWMutex
	log     *slog.Logger
	metrics Metrics
	subs    []busSubscriber
}

type (
	busOptions struct{ metrics Metrics }

	// BusOption configures a Bus.
	BusOption interface{ applyToBus(*busOptions) }
)

func (o MetricsOption) applyToBus(opts *busOptions) { opts.metrics = o.m }

func NewBus(log *slog.Logger, opts ...BusOption) *Bus {
	options := busOptions{metrics: NopMetrics()}
	for _, opt := range opts {
		opt.applyToBus(&options)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:     log.With(slog.String("component", "bus")),
		metrics: options.metrics,
	}
}

// Subscribe registers h for the given event types. With no types, h receives
// every published event. Subscriptions live for the process lifetime.
func (b *Bus) Subscribe(name string, h Handler, eventTypes ...string) {
	types := map[string]struct{}{}
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, busSubscriber{name: name, types: types, h: h})
	b.log.Debug("subscribed", slog.String("subscriber", name), slog.Int("num_types", len(eventTypes)))
}

// Publish delivers one committed event to all matching subscribers. It never
// returns an error: subscriber failures are logged, not propagated, since the
// append has already committed.
func (b *Bus) Publish(ctx context.Context, env Envelope, event any) {
	defer b.metrics.BusPublishDuration(env.Type).ObserveDuration()

	b.mu.RLock()
	subs := make([]busSubscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.matches(env.Type) {
			continue
		}
		msgCtx := newMsgCtx(ctx, b.log.With(slog.String("subscriber", sub.name)), env, event, true)
		if err := sub.h.Handle(msgCtx); err != nil {
			b.metrics.SubscriberEventProcessed(sub.name, env.Type, false)
			msgCtx.Log().Error("subscriber failed", slog.Any("error", err))
			continue
		}
		b.metrics.SubscriberEventProcessed(sub.name, env.Type, true)
	}
}
