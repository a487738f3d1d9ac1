// Package nats relays committed ledger events onto a NATS connection so
// out-of-process consumers (bots, dashboards, other game servers) can follow
// the economy without access to the event store.
package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/MyndPhreak/gamerp/core/es"
)

const DefaultSubjectPrefix = "ledger.events"

type Relay struct {
	nc     *nats.Conn
	log    *slog.Logger
	prefix string
}

type relayOptions struct {
	log    *slog.Logger
	prefix string
}

type RelayOption func(*relayOptions)

func WithSubjectPrefix(prefix string) RelayOption {
	return func(o *relayOptions) { o.prefix = prefix }
}

func WithLog(log *slog.Logger) RelayOption {
	return func(o *relayOptions) { o.log = log }
}

func NewRelay(nc *nats.Conn, opts ...RelayOption) *Relay {
	o := relayOptions{
		log:    slog.Default(),
		prefix: DefaultSubjectPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Relay{
		nc:     nc,
		log:    o.log.With(slog.String("component", "nats-relay")),
		prefix: o.prefix,
	}
}

func (r *Relay) Name() string { return "nats-relay" }

// Subject returns the subject an envelope is relayed on:
// <prefix>.<aggregate type>.<aggregate id>.
func (r *Relay) Subject(env es.Envelope) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, env.AggregateType, env.AggregateID)
}

func (r *Relay) Handle(ctx es.MsgCtx) error {
	env := ctx.Envelope()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", env.ID, err)
	}

	subject := r.Subject(env)
	if err := r.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.ID, subject, err)
	}

	r.log.Debug("relayed", slog.String("subject", subject), slog.Uint64("seq", env.Seq))
	return nil
}

var _ es.Handler = (*Relay)(nil)
