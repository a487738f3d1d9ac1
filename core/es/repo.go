package es

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDGenerator is a function that generates unique IDs for event envelopes.
type IDGenerator func() string

// DefaultIDGenerator returns the default ID generator using nanoid.
func DefaultIDGenerator() IDGenerator {
	return func() string { return gonanoid.Must() }
}

type (
	repoOpts struct {
		bus         *Bus
		idGenerator IDGenerator
		metrics     Metrics
	}

	// RepositoryOption configures a Repository.
	RepositoryOption interface{ applyToRepository(*repoOpts) }

	repoBusOption         valueOption[*Bus]
	repoIDGeneratorOption valueOption[IDGenerator]

	// Repository rehydrates aggregates by replaying their streams and
	// persists new events with optimistic concurrency.
	Repository interface {
		Load(ctx context.Context, agg Aggregate, opts ...ReadOption) error
		Save(ctx context.Context, agg Aggregate) error
	}
)

func (o repoBusOption) applyToRepository(opts *repoOpts)         { opts.bus = o.v }
func (o repoIDGeneratorOption) applyToRepository(opts *repoOpts) { opts.idGenerator = o.v }
func (o MetricsOption) applyToRepository(opts *repoOpts)         { opts.metrics = o.m }

// WithBus makes Save publish committed events to b, in commit order, before
// returning to the caller.
func WithBus(b *Bus) RepositoryOption { return repoBusOption{v: b} }

// WithIDGenerator sets a custom ID generator for event envelope IDs.
func WithIDGenerator(gen IDGenerator) RepositoryOption { return repoIDGeneratorOption{v: gen} }

type repository struct {
	log         *slog.Logger
	store       EventStore
	registry    *EventRegistry
	bus         *Bus
	idGenerator IDGenerator
	metrics     Metrics
}

func NewRepository(
	log *slog.Logger,
	store EventStore,
	registry *EventRegistry,
	opts ...RepositoryOption,
) Repository {
	options := repoOpts{
		idGenerator: DefaultIDGenerator(),
		metrics:     NopMetrics(),
	}
	for _, opt := range opts {
		opt.applyToRepository(&options)
	}

	if log == nil {
		log = slog.Default()
	}

	return &repository{
		log:         log.With(slog.String("repo", fmt.Sprintf("%T", store))),
		store:       store,
		registry:    registry,
		bus:         options.bus,
		idGenerator: options.idGenerator,
		metrics:     options.metrics,
	}
}

// Load rehydrates agg from the store by folding its stream from zero-state.
// Returns ErrAggregateNotFound if the stream is empty: the aggregate does
// not exist yet and agg is left at version 0.
func (r *repository) Load(ctx context.Context, agg Aggregate, opts ...ReadOption) error {
	aggType := agg.GetAggType()
	if aggType == "" {
		return errors.New("aggregate type is empty")
	}
	aggID := agg.GetID()
	if aggID == "" {
		return errors.New("aggregate id is empty")
	}
	if len(agg.Uncommitted()) != 0 {
		return errors.New("aggregate has uncommitted events (dirty=true)")
	}

	defer r.metrics.RepoLoadDuration(aggType).ObserveDuration()

	log := r.log.With(
		slog.Group(
			"agg",
			slog.String("type", aggType),
			slog.String("id", aggID),
		),
	)
	log.Debug("loading")

	loaded, err := r.store.ReadStream(ctx, aggType, aggID, opts...)
	if err != nil {
		return err
	}

	for _, e := range loaded {
		expectVersion := agg.GetVersion() + 1
		if e.Version != expectVersion {
			return fmt.Errorf("expect version %d, got %d", expectVersion, e.Version)
		}

		evt, err := r.registry.Decode(e)
		if err != nil {
			return err
		}
		if err := agg.Apply(evt); err != nil {
			return err
		}

		agg.setVersion(e.Version)
		agg.setSeq(e.Seq)
	}

	if agg.GetVersion() == 0 {
		return ErrAggregateNotFound
	}

	log.Debug("loaded", agg.GetVersion().SlogAttr(), slog.Uint64("seq", agg.GetSeq()))

	return nil
}

// Save appends the aggregate's uncommitted events with
// expectedVersion = agg.GetVersion(), clears the buffer, and publishes the
// committed events to the bus in commit order.
func (r *repository) Save(ctx context.Context, agg Aggregate) error {
	uncommitted := agg.Uncommitted()
	if len(uncommitted) == 0 {
		return nil
	}
	aggType := agg.GetAggType()
	if aggType == "" {
		return errors.New("aggregate type is empty")
	}
	aggID := agg.GetID()
	if aggID == "" {
		return errors.New("aggregate id is empty")
	}

	defer r.metrics.RepoSaveDuration(aggType).ObserveDuration()

	expectVersion := agg.GetVersion()
	newEnvs := make([]Envelope, 0, len(uncommitted))
	v := expectVersion

	for _, ev := range uncommitted {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}

		eventType, err := eventTypeOf(ev)
		if err != nil {
			return err
		}

		v++

		env := Envelope{
			ID:            r.idGenerator(),
			Type:          eventType,
			AggregateID:   aggID,
			AggregateType: aggType,
			Version:       v,
			OccurredAt:    time.Now(),
			Data:          data,
		}

		if err := env.Validate(); err != nil {
			return err
		}

		newEnvs = append(newEnvs, env)
	}

	res, err := r.store.Append(ctx, aggType, aggID, expectVersion, newEnvs)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			r.metrics.ConcurrencyConflict(aggType)
		}
		return fmt.Errorf("failed to save agg_type=%s agg_id=%s: %w", aggType, aggID, err)
	}
	if res == nil {
		return errors.New("append returned nil result")
	}

	r.metrics.EventsAppended(aggType, len(newEnvs))
	agg.setSeq(res.LastSeq)
	agg.setVersion(v)
	agg.ClearUncommitted()

	r.log.Debug(
		"saved",
		slog.Group(
			"agg",
			slog.String("id", aggID),
			slog.String("type", aggType),
			slog.Uint64("seq", agg.GetSeq()),
			agg.GetVersion().SlogAttr(),
		),
		slog.Int("num_events", len(newEnvs)),
	)

	if r.bus != nil {
		// The batch received consecutive global sequences ending at LastSeq.
		firstSeq := res.LastSeq - uint64(len(newEnvs)) + 1
		for i, env := range newEnvs {
			env.Seq = firstSeq + uint64(i)
			r.bus.Publish(ctx, env, uncommitted[i])
		}
	}

	return nil
}

var _ Repository = (*repository)(nil)

// === TypedRepository ===

// TypedRepository narrows Repository to one aggregate type.
type TypedRepository[T Aggregate] interface {
	GetAggType() string
	New() T
	NewWithID(id string) T
	GetByID(ctx context.Context, aggID string, opts ...ReadOption) (T, error)
	Save(ctx context.Context, agg T) error

	// WithRetry runs load -> fn -> save with a bounded number of attempts,
	// reloading and retrying when the save loses an optimistic-concurrency
	// race. fn sees zero-state (version 0) when the aggregate does not
	// exist yet and decides whether that is acceptable.
	WithRetry(ctx context.Context, aggID string, attempts int, fn func(T) error) (T, error)
}

type typedRepo[T Aggregate] struct {
	r   Repository
	log *slog.Logger
}

func NewTypedRepository[T Aggregate](log *slog.Logger, r Repository) TypedRepository[T] {
	if log == nil {
		log = slog.Default()
	}
	return &typedRepo[T]{r: r, log: log.With(slog.String("repo", fmt.Sprintf("%T", *new(T))))}
}

func (t *typedRepo[T]) New() T { return t.NewWithID("") }

func (t *typedRepo[T]) NewWithID(id string) T {
	var a T
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() == reflect.Pointer {
		a = reflect.New(rt.Elem()).Interface().(T)
	} else {
		a = *new(T)
	}
	a.SetID(id)
	return a
}

func (t *typedRepo[T]) GetAggType() string {
	return t.New().GetAggType()
}

func (t *typedRepo[T]) GetByID(ctx context.Context, aggID string, opts ...ReadOption) (a T, err error) {
	if aggID == "" {
		return a, errors.New("aggregate id is empty")
	}
	a = t.NewWithID(aggID)
	if err = t.r.Load(ctx, a, opts...); err != nil {
		return
	}
	return a, nil
}

func (t *typedRepo[T]) Save(ctx context.Context, agg T) error {
	return t.r.Save(ctx, agg)
}

func (t *typedRepo[T]) WithRetry(ctx context.Context, aggID string, attempts int, fn func(T) error) (a T, err error) {
	if aggID == "" {
		return a, errors.New("aggregate id is empty")
	}
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		a = t.NewWithID(aggID)
		err = t.r.Load(ctx, a)
		if err != nil && !errors.Is(err, ErrAggregateNotFound) {
			return a, err
		}
		if err = fn(a); err != nil {
			return a, err
		}
		err = t.r.Save(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return a, err
		}
		t.log.Debug("retrying after conflict", slog.String("id", aggID), slog.Int("attempt", i+1))
	}
	return a, err
}

var _ TypedRepository[Aggregate] = (*typedRepo[Aggregate])(nil)
