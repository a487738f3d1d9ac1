package nats_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	natsrelay "github.com/MyndPhreak/gamerp/adapters/nats"
	"github.com/MyndPhreak/gamerp/core/es"
)

func connect(t *testing.T) *natsgo.Conn {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return nc
}

func envelope(seq uint64, aggType, aggID, evType string) es.Envelope {
	return es.Envelope{
		ID:            "ev-1",
		Seq:           seq,
		Version:       1,
		AggregateType: aggType,
		AggregateID:   aggID,
		Type:          evType,
		OccurredAt:    time.Now().UTC(),
		Data:          json.RawMessage(`{"amount":10}`),
	}
}

func TestRelay_PublishesEnvelopes(t *testing.T) {
	nc := connect(t)
	relay := natsrelay.NewRelay(nc)

	sub, err := nc.SubscribeSync("ledger.events.>")
	require.NoError(t, err)

	bus := es.NewBus(slog.Default())
	bus.Subscribe(relay.Name(), relay)

	env := envelope(7, "wallet", "w1", "wallet.money_deposited")
	bus.Publish(context.Background(), env, nil)

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "ledger.events.wallet.w1", msg.Subject)

	var got es.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.EqualValues(t, 7, got.Seq)
	require.Equal(t, "wallet.money_deposited", got.Type)
}

func TestRelay_SubjectPrefix(t *testing.T) {
	nc := connect(t)
	relay := natsrelay.NewRelay(nc, natsrelay.WithSubjectPrefix("economy"))

	sub, err := nc.SubscribeSync("economy.bank.b1")
	require.NoError(t, err)

	require.NoError(t, relay.Handle(msgCtxFor(t, envelope(1, "bank", "b1", "bank.opened"))))

	_, err = sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
}

// msgCtxFor routes an envelope through a bus to capture a MsgCtx.
func msgCtxFor(t *testing.T, env es.Envelope) es.MsgCtx {
	t.Helper()

	var captured es.MsgCtx
	bus := es.NewBus(slog.Default())
	bus.Subscribe("capture", es.HandleFunc(func(ctx es.MsgCtx) error {
		captured = ctx
		return nil
	}))
	bus.Publish(context.Background(), env, nil)
	return captured
}
