package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	consumerOpts struct {
		mws        []HandlerMiddleware
		log        *slog.Logger
		name       string
		eventTypes []string
		metrics    Metrics
	}

	// ConsumerOption configures a Consumer.
	ConsumerOption interface {
		applyToConsumerOpts(*consumerOpts)
	}

	consumerNameOption valueOption[string]
	middlewareOption   valueOption[[]HandlerMiddleware]
	eventTypesOption   valueOption[[]string]
)

func (o consumerNameOption) applyToConsumerOpts(opts *consumerOpts) { opts.name = o.v }
func (o middlewareOption) applyToConsumerOpts(opts *consumerOpts) {
	opts.mws = append(opts.mws, o.v...)
}
func (o eventTypesOption) applyToConsumerOpts(opts *consumerOpts) {
	opts.eventTypes = append(opts.eventTypes, o.v...)
}
func (o LogOption) applyToConsumerOpts(opts *consumerOpts)     { opts.log = o.l }
func (o MetricsOption) applyToConsumerOpts(opts *consumerOpts) { opts.metrics = o.m }

func WithConsumerName(name string) ConsumerOption { return consumerNameOption{v: name} }
func WithMiddlewares(mws ...HandlerMiddleware) ConsumerOption {
	return middlewareOption{v: mws}
}

// WithEventTypes restricts live delivery to the given payload types.
// Catch-up replay is filtered the same way.
func WithEventTypes(types ...string) ConsumerOption { return eventTypesOption{v: types} }

func newConsumerOpts(opts ...ConsumerOption) consumerOpts {
	options := consumerOpts{
		log:     slog.Default(),
		name:    fmt.Sprintf("consumer-%s", gonanoid.Must(6)),
		metrics: NopMetrics(),
	}
	for _, opt := range opts {
		opt.applyToConsumerOpts(&options)
	}
	return options
}

// Consumer attaches a Handler to the event flow with restart semantics: on
// Start it replays everything after the handler's checkpoint via ReadSince,
// then subscribes to the live bus. Combined with NewCheckpointMiddleware the
// handler never misses an event committed while the process was down, and
// never double-applies one delivered both by catch-up and live fan-out.
//
// Start must run before commands begin to flow; events committed between the
// catch-up scan and the bus subscription would otherwise be missed.
type Consumer struct {
	store      EventStore
	decoder    Decoder
	bus        *Bus
	handler    Handler
	log        *slog.Logger
	name       string
	eventTypes []string
	metrics    Metrics
}

func NewConsumer(
	store EventStore,
	decoder Decoder,
	bus *Bus,
	handler Handler,
	opts ...ConsumerOption,
) *Consumer {
	options := newConsumerOpts(opts...)

	return &Consumer{
		store:      store,
		decoder:    decoder,
		bus:        bus,
		handler:    applyMiddlewares(handler, options.mws),
		log:        options.log.With(slog.String("consumer", options.name)),
		name:       options.name,
		eventTypes: options.eventTypes,
		metrics:    options.metrics,
	}
}

func (c *Consumer) Name() string { return c.name }

func (c *Consumer) wants(eventType string) bool {
	if len(c.eventTypes) == 0 {
		return true
	}
	for _, t := range c.eventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Start replays missed history and then attaches the handler to the bus.
func (c *Consumer) Start(ctx context.Context) error {
	var lastSeenSeq uint64
	if cp, ok := c.handler.(Checkpoint); ok {
		var err error
		lastSeenSeq, err = cp.GetLastSeq()
		if err != nil && !errors.Is(err, ErrCheckpointNotFound) {
			return err
		}
	}

	c.log.Info("catching up", slog.Uint64("last_seen_seq", lastSeenSeq))

	missed, err := c.store.ReadSince(ctx, lastSeenSeq)
	if err != nil {
		return fmt.Errorf("failed to read since seq %d: %w", lastSeenSeq, err)
	}

	caughtUp := 0
	for _, env := range missed {
		if !c.wants(env.Type) {
			continue
		}
		evt, err := c.decoder.Decode(env)
		if err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		msgCtx := newMsgCtx(ctx, c.log, env, evt, false)
		if err := c.handler.Handle(msgCtx); err != nil {
			return fmt.Errorf("failed to handle event seq=%d: %w", env.Seq, err)
		}
		caughtUp++
	}
	c.metrics.ConsumerCatchUpEvents(c.name, caughtUp)

	c.bus.Subscribe(c.name, c.handler, c.eventTypes...)

	c.log.Info("live", slog.Int("caught_up", caughtUp))

	return nil
}
