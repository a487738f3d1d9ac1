// Package bolt persists the event log in a bbolt file. Streams and the
// global log are separate buckets over the same envelopes: streams are keyed
// by per-aggregate version, the global log by the monotonic sequence the
// bucket itself assigns.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	bbolt "go.etcd.io/bbolt"

	"github.com/MyndPhreak/gamerp/core/es"
)

var (
	bucketStreams     = []byte("streams")
	bucketGlobal      = []byte("global")
	bucketCheckpoints = []byte("checkpoints")
)

type Store struct {
	db      *bbolt.DB
	log     *slog.Logger
	metrics es.Metrics
}

type storeOptions struct {
	log     *slog.Logger
	metrics es.Metrics
}

type StoreOption func(*storeOptions)

func WithLog(log *slog.Logger) StoreOption {
	return func(o *storeOptions) { o.log = log }
}

// WithMetrics instruments append and read durations.
func WithMetrics(m es.Metrics) StoreOption {
	return func(o *storeOptions) { o.metrics = m }
}

// Open opens (or creates) the event store at path.
func Open(path string, opts ...StoreOption) (*Store, error) {
	o := storeOptions{log: slog.Default(), metrics: es.NopMetrics()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open event store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketStreams, bucketGlobal, bucketCheckpoints} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &Store{
		db:      db,
		log:     o.log.With(slog.String("store", "bolt")),
		metrics: o.metrics,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func streamKey(aggType, aggID string) []byte {
	return []byte(fmt.Sprintf("%s-%s", aggType, aggID))
}

func u64Key(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func (s *Store) Append(
	_ context.Context,
	aggType string,
	aggID string,
	expected es.Version,
	events []es.Envelope,
) (*es.AppendResult, error) {
	defer s.metrics.StoreAppendDuration(aggType).ObserveDuration()

	var lastSeq uint64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		stream, err := tx.Bucket(bucketStreams).CreateBucketIfNotExists(streamKey(aggType, aggID))
		if err != nil {
			return err
		}

		curVersion := es.Version(0)
		if k, _ := stream.Cursor().Last(); k != nil {
			curVersion = es.Version(binary.BigEndian.Uint64(k))
		}
		if curVersion != expected {
			return es.ErrConcurrencyConflict
		}
		if err := es.ValidateBatch(expected, events); err != nil {
			return err
		}

		global := tx.Bucket(bucketGlobal)
		for _, e := range events {
			seq, err := global.NextSequence()
			if err != nil {
				return err
			}
			e.Seq = seq
			lastSeq = seq

			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := stream.Put(u64Key(uint64(e.Version)), data); err != nil {
				return err
			}
			if err := global.Put(u64Key(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(
		"append",
		slog.String("stream", string(streamKey(aggType, aggID))),
		expected.SlogAttrWithKey("expected_version"),
		slog.Uint64("last_seq", lastSeq),
		slog.Int("num_events", len(events)),
	)

	return &es.AppendResult{LastSeq: lastSeq}, nil
}

func (s *Store) ReadStream(
	_ context.Context,
	aggType string,
	aggID string,
	opts ...es.ReadOption,
) ([]es.Envelope, error) {
	defer s.metrics.StoreReadDuration(aggType).ObserveDuration()

	readOpts := es.NewReadOptions(opts...)

	var out []es.Envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket(bucketStreams).Bucket(streamKey(aggType, aggID))
		if stream == nil {
			return es.ErrAggregateNotFound
		}

		c := stream.Cursor()
		for k, v := c.Seek(u64Key(uint64(readOpts.StartVersion))); k != nil; k, v = c.Next() {
			var env es.Envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			out = append(out, env)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReadByType(_ context.Context, eventType string) ([]es.Envelope, error) {
	out := make([]es.Envelope, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketGlobal).ForEach(func(_, v []byte) error {
			// cheap pre-filter before decoding the whole envelope
			if !bytes.Contains(v, []byte(`"`+eventType+`"`)) {
				return nil
			}
			var env es.Envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			if env.Type == eventType {
				out = append(out, env)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReadSince(_ context.Context, seq uint64) ([]es.Envelope, error) {
	out := make([]es.Envelope, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketGlobal).Cursor()
		for k, v := c.Seek(u64Key(seq + 1)); k != nil; k, v = c.Next() {
			var env es.Envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return err
			}
			out = append(out, env)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ es.EventStore = (*Store)(nil)

// CheckpointStore persists one subscriber's cursor in the store's checkpoint
// bucket, keyed by subscriber name.
type CheckpointStore struct {
	db   *bbolt.DB
	name []byte
}

func (s *Store) Checkpoints(name string) *CheckpointStore {
	return &CheckpointStore{db: s.db, name: []byte(name)}
}

func (c *CheckpointStore) Get() (uint64, error) {
	var v uint64
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketCheckpoints).Get(c.name)
		if raw != nil {
			v = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return v, err
}

func (c *CheckpointStore) Set(v uint64) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(c.name, u64Key(v))
	})
}

var _ es.CpStore = (*CheckpointStore)(nil)
