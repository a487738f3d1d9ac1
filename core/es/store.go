package es

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrStoreNoEvents = errors.New("no events to store")
	// ErrInvalidBatch marks a batch whose envelopes are malformed or whose
	// versions do not form a gapless run following the expected version. It is
	// a caller bug, not a lost concurrency race.
	ErrInvalidBatch = errors.New("invalid event batch")
)

type (
	// ReadOptions is the resolved form of a ReadStream call's options.
	// Store implementations obtain it via NewReadOptions.
	ReadOptions struct {
		StartVersion Version
	}

	// ReadOption narrows a ReadStream call.
	ReadOption interface {
		applyToReadOptions(*ReadOptions)
	}

	startVersionOption valueOption[Version]
)

func (o startVersionOption) applyToReadOptions(opts *ReadOptions) { opts.StartVersion = o.v }

// WithStartVersion skips events below the given per-aggregate version.
func WithStartVersion(v Version) ReadOption { return startVersionOption{v} }

func NewReadOptions(opts ...ReadOption) ReadOptions {
	options := ReadOptions{}
	for _, opt := range opts {
		opt.applyToReadOptions(&options)
	}
	return options
}

type (
	// AppendResult reports the outcome of a successful append.
	AppendResult struct {
		// LastSeq is the global sequence number of the last appended event.
		LastSeq uint64
	}

	// EventStore is the append-only per-aggregate-stream log.
	//
	// Append is all-or-nothing: the batch is written only if the stream's
	// currently persisted version equals expected; otherwise it fails with
	// ErrConcurrencyConflict and nothing is written. A malformed batch fails
	// with ErrInvalidBatch. Each successful append
	// advances a process-wide global sequence counter used only for
	// catch-up ordering (ReadSince), independent of per-aggregate versions.
	EventStore interface {
		Append(ctx context.Context, aggType string, aggID string, expected Version, events []Envelope) (*AppendResult, error)

		// ReadStream returns all events of one aggregate, version ascending.
		// Returns ErrAggregateNotFound if the stream has no events.
		ReadStream(ctx context.Context, aggType string, aggID string, opts ...ReadOption) ([]Envelope, error)

		// ReadByType returns all events of one payload type across all
		// aggregates, global sequence ascending.
		ReadByType(ctx context.Context, eventType string) ([]Envelope, error)

		// ReadSince returns all events with a global sequence strictly
		// greater than seq, global sequence ascending.
		ReadSince(ctx context.Context, seq uint64) ([]Envelope, error)
	}
)

// ValidateBatch checks that the batch carries a gapless run of versions
// directly following expected. Stores call this before committing.
func ValidateBatch(expected Version, events []Envelope) error {
	if len(events) == 0 {
		return ErrStoreNoEvents
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
		}
		if want := expected + Version(i+1); e.Version != want {
			return fmt.Errorf("%w: event %d has version %d, want %d", ErrInvalidBatch, i, e.Version, want)
		}
	}
	return nil
}
