package es

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryStore is a simple, correct (optimistic) store for tests/dev.
type InMemoryStore struct {
	mu      sync.Mutex
	log     *slog.Logger
	seq     uint64
	streams map[string][]Envelope
	global  []Envelope
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		streams: map[string][]Envelope{},
	}
}

func (s *InMemoryStore) streamKey(aggType, aggID string) string {
	return fmt.Sprintf("%s-%s", aggType, aggID)
}

func (s *InMemoryStore) Append(
	_ context.Context,
	aggType string,
	aggID string,
	expected Version,
	events []Envelope,
) (*AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sk         = s.streamKey(aggType, aggID)
		curStream  = s.streams[sk]
		curVersion = Version(0)
	)
	if len(curStream) > 0 {
		curVersion = curStream[len(curStream)-1].Version
	}
	if curVersion != expected {
		return nil, ErrConcurrencyConflict
	}
	if err := ValidateBatch(expected, events); err != nil {
		return nil, err
	}

	var lastSeq uint64
	appended := make([]Envelope, 0, len(events))
	for _, e := range events {
		s.seq++
		lastSeq = s.seq
		e.Seq = lastSeq
		appended = append(appended, e)
	}
	s.streams[sk] = append(curStream, appended...)
	s.global = append(s.global, appended...)

	s.log.Debug(
		"append",
		slog.String("stream", sk),
		slog.Uint64("last_seq", lastSeq),
		slog.Int("num_events", len(appended)),
	)

	return &AppendResult{LastSeq: lastSeq}, nil
}

func (s *InMemoryStore) ReadStream(
	_ context.Context,
	aggType string,
	aggID string,
	opts ...ReadOption,
) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readOpts := NewReadOptions(opts...)

	events, ok := s.streams[s.streamKey(aggType, aggID)]
	if !ok {
		return nil, ErrAggregateNotFound
	}

	out := make([]Envelope, 0, len(events))
	for _, e := range events {
		if e.Version < readOpts.StartVersion {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) ReadByType(_ context.Context, eventType string) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Envelope, 0)
	for _, e := range s.global {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ReadSince(_ context.Context, seq uint64) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Envelope, 0)
	for _, e := range s.global {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ EventStore = (*InMemoryStore)(nil)
