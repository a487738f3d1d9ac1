package es_test

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/MyndPhreak/gamerp/core/es"
)

// testAgg is a small counter aggregate used across the es tests.
type testAgg struct {
	es.BaseAggregate

	Count  int
	Resets int
}

type (
	counterIncremented struct {
		By int `json:"by"`
	}
	counterReset struct{}
)

func (counterIncremented) EventType() string { return "counter.incremented" }
func (counterReset) EventType() string       { return "counter.reset" }

func (a *testAgg) GetAggType() string { return "counter" }

func (a *testAgg) Register(r es.Registrar) {
	es.RegisterEvents(r, es.Event[counterIncremented](), es.Event[counterReset]())
}

func (a *testAgg) Apply(event any) error {
	switch e := event.(type) {
	case *counterIncremented:
		a.Count += e.By
		return nil
	case *counterReset:
		a.Count = 0
		a.Resets++
		return nil
	}
	return fmt.Errorf("unknown event: %T", event)
}

func (a *testAgg) IncBy(v int) error {
	if v <= 0 {
		return fmt.Errorf("increment must be positive")
	}
	return es.RaiseAndApply(a, &counterIncremented{By: v})
}

func (a *testAgg) Reset() error { return es.RaiseAndApply(a, &counterReset{}) }

func newTestRegistry() *es.EventRegistry {
	reg := es.NewRegistry()
	(&testAgg{}).Register(reg)
	return reg
}

// mkEnvs builds a contiguous batch of counter.incremented envelopes starting
// directly after expect.
func mkEnvs(aggID string, expect es.Version, n int) []es.Envelope {
	envs := make([]es.Envelope, 0, n)
	for i := 0; i < n; i++ {
		envs = append(envs, es.Envelope{
			ID:            gonanoid.Must(),
			Type:          "counter.incremented",
			AggregateType: "counter",
			AggregateID:   aggID,
			Version:       expect + es.Version(i+1),
			OccurredAt:    time.Now(),
			Data:          []byte(`{"by":1}`),
		})
	}
	return envs
}

func appendN(ctx context.Context, store es.EventStore, aggID string, expect es.Version, n int) (*es.AppendResult, error) {
	return store.Append(ctx, "counter", aggID, expect, mkEnvs(aggID, expect, n))
}
