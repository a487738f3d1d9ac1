// Package es implements the event-sourcing core of the ledger: an append-only
// per-aggregate event store with optimistic concurrency, aggregates whose
// state is a pure fold of their event stream, a repository that rehydrates
// and persists them, a synchronous in-process event bus, and checkpointed
// catch-up consumers for rebuilding subscribers after a restart.
package es
