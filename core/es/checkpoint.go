package es

import (
	"errors"
	"sync"
)

var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

type (
	// CpStore persists the last processed global sequence of a subscriber.
	CpStore interface {
		Get() (lastSeq uint64, err error)
		Set(lastSeq uint64) error
	}

	// Checkpoint is implemented by handlers that track their processing
	// progress. When a handler implements this interface, the Consumer uses
	// GetLastSeq() to determine where to resume after a restart.
	Checkpoint interface {
		// GetLastSeq returns the sequence number of the last successfully
		// processed event. Returns ErrCheckpointNotFound if none exists.
		GetLastSeq() (uint64, error)
	}
)

type InMemCpStore struct {
	mu sync.RWMutex
	v  uint64
}

func NewInMemCpStore() *InMemCpStore {
	return &InMemCpStore{}
}

func (s *InMemCpStore) Get() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v, nil
}

func (s *InMemCpStore) Set(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
	return nil
}

var _ CpStore = (*InMemCpStore)(nil)
