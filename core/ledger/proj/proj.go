// Package proj holds the read models folded from the ledger's event log.
// Each projection is a bus subscriber that also knows how to rebuild itself
// from scratch, so a fresh fold and the live-updated state always converge.
package proj

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MyndPhreak/gamerp/core/es"
)

// Projection is a queryable read model fed by committed events.
type Projection interface {
	es.Handler

	// Name identifies the projection for queries and bus subscriptions.
	Name() string

	// EventTypes lists the event types this projection folds.
	EventTypes() []string

	// Lookup returns the record stored under key, if any.
	Lookup(key string) (any, bool)

	// Rebuild discards all state and refolds the full event log.
	Rebuild(ctx context.Context, store es.EventStore) error
}

func decodeInto(env es.Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s event %s: %w", env.Type, env.ID, err)
	}
	return nil
}

// rebuild replays the whole log through apply after reset has cleared state.
func rebuild(ctx context.Context, store es.EventStore, reset func(), apply func(es.Envelope) error) error {
	envs, err := store.ReadSince(ctx, 0)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}

	reset()
	for _, env := range envs {
		if err := apply(env); err != nil {
			return err
		}
	}

	return nil
}
