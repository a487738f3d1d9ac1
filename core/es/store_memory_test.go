package es_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyndPhreak/gamerp/core/es"
)

func TestInMemoryStore_AppendAndReadStream(t *testing.T) {
	store := es.NewInMemoryStore()

	res, err := appendN(t.Context(), store, "c1", 0, 3)
	require.NoError(t, err)
	require.EqualValues(t, 3, res.LastSeq)

	envs, err := store.ReadStream(t.Context(), "counter", "c1")
	require.NoError(t, err)
	require.Len(t, envs, 3)
	for i, env := range envs {
		require.EqualValues(t, i+1, env.Version)
		require.EqualValues(t, i+1, env.Seq)
	}

	// stream versions continue after the persisted head
	res, err = appendN(t.Context(), store, "c1", 3, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, res.LastSeq)
}

func TestInMemoryStore_ReadStream_notFound(t *testing.T) {
	store := es.NewInMemoryStore()
	_, err := store.ReadStream(t.Context(), "counter", "nope")
	require.ErrorIs(t, err, es.ErrAggregateNotFound)
}

func TestInMemoryStore_Append_conflict(t *testing.T) {
	store := es.NewInMemoryStore()

	_, err := appendN(t.Context(), store, "c1", 0, 2)
	require.NoError(t, err)

	// stale expected version
	_, err = appendN(t.Context(), store, "c1", 1, 1)
	require.ErrorIs(t, err, es.ErrConcurrencyConflict)

	// future expected version
	_, err = appendN(t.Context(), store, "c1", 5, 1)
	require.ErrorIs(t, err, es.ErrConcurrencyConflict)

	// nothing was written
	envs, err := store.ReadStream(t.Context(), "counter", "c1")
	require.NoError(t, err)
	require.Len(t, envs, 2)
}

func TestInMemoryStore_Append_batchAllOrNothing(t *testing.T) {
	store := es.NewInMemoryStore()

	// batch with a gap in the middle must be rejected entirely
	envs := mkEnvs("c1", 0, 3)
	envs[2].Version = 7
	_, err := store.Append(t.Context(), "counter", "c1", 0, envs)
	require.ErrorIs(t, err, es.ErrInvalidBatch)

	_, err = store.ReadStream(t.Context(), "counter", "c1")
	require.ErrorIs(t, err, es.ErrAggregateNotFound)
}

func TestInMemoryStore_Append_emptyBatch(t *testing.T) {
	store := es.NewInMemoryStore()
	_, err := store.Append(t.Context(), "counter", "c1", 0, nil)
	require.ErrorIs(t, err, es.ErrStoreNoEvents)
}

func TestInMemoryStore_Append_doubleAppendRace(t *testing.T) {
	store := es.NewInMemoryStore()
	_, err := appendN(t.Context(), store, "c1", 0, 1)
	require.NoError(t, err)

	// two concurrent appends under the same expected version: exactly one
	// wins, the other gets a concurrency conflict.
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = appendN(t.Context(), store, "c1", 1, 1)
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, es.ErrConcurrencyConflict)
			conflicts++
		}
	}
	require.Equal(t, 1, conflicts)

	envs, err := store.ReadStream(t.Context(), "counter", "c1")
	require.NoError(t, err)
	require.Len(t, envs, 2)
}

func TestInMemoryStore_ReadByType(t *testing.T) {
	store := es.NewInMemoryStore()

	_, err := appendN(t.Context(), store, "c1", 0, 2)
	require.NoError(t, err)
	_, err = store.Append(t.Context(), "counter", "c2", 0, []es.Envelope{{
		ID:            "reset-1",
		Type:          "counter.reset",
		AggregateType: "counter",
		AggregateID:   "c2",
		Version:       1,
		OccurredAt:    mkEnvs("c2", 0, 1)[0].OccurredAt,
		Data:          []byte(`{}`),
	}})
	require.NoError(t, err)
	_, err = appendN(t.Context(), store, "c3", 0, 1)
	require.NoError(t, err)

	incs, err := store.ReadByType(t.Context(), "counter.incremented")
	require.NoError(t, err)
	require.Len(t, incs, 3)
	// global sequence ascending
	for i := 1; i < len(incs); i++ {
		require.Greater(t, incs[i].Seq, incs[i-1].Seq)
	}

	resets, err := store.ReadByType(t.Context(), "counter.reset")
	require.NoError(t, err)
	require.Len(t, resets, 1)
}

func TestInMemoryStore_ReadSince(t *testing.T) {
	store := es.NewInMemoryStore()

	_, err := appendN(t.Context(), store, "c1", 0, 3)
	require.NoError(t, err)
	_, err = appendN(t.Context(), store, "c2", 0, 2)
	require.NoError(t, err)

	all, err := store.ReadSince(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, all, 5)

	tail, err := store.ReadSince(t.Context(), 3)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.EqualValues(t, 4, tail[0].Seq)
	require.EqualValues(t, 5, tail[1].Seq)

	none, err := store.ReadSince(t.Context(), 5)
	require.NoError(t, err)
	require.Empty(t, none)
}
