package proj_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
	"github.com/MyndPhreak/gamerp/core/ledger/proj"
)

type fixture struct {
	t     *testing.T
	store *es.InMemoryStore
	bus   *es.Bus

	versions map[string]es.Version
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:        t,
		store:    es.NewInMemoryStore(),
		bus:      es.NewBus(slog.Default()),
		versions: map[string]es.Version{},
	}
}

// commit appends the event to its stream and publishes it live, the same
// order the repository uses.
func (f *fixture) commit(aggType, aggID string, evt es.EventTyper) {
	f.t.Helper()

	data, err := json.Marshal(evt)
	require.NoError(f.t, err)

	key := aggType + "-" + aggID
	expected := f.versions[key]

	env := es.Envelope{
		ID:            key + "-" + time.Now().Format("150405.000000000"),
		Version:       expected + 1,
		AggregateType: aggType,
		AggregateID:   aggID,
		Type:          evt.EventType(),
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}

	res, err := f.store.Append(context.Background(), aggType, aggID, expected, []es.Envelope{env})
	require.NoError(f.t, err)
	f.versions[key] = expected + 1

	env.Seq = res.LastSeq
	f.bus.Publish(context.Background(), env, evt)
}

func (f *fixture) subscribe(p proj.Projection) {
	f.bus.Subscribe(p.Name(), p, p.EventTypes()...)
}

func TestWalletBalances(t *testing.T) {
	f := newFixture(t)
	p := proj.NewWalletBalances()
	f.subscribe(p)

	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.WalletOpened{Owner: "alice"})
	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.MoneyDeposited{Amount: 100})
	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.MoneyWithdrawn{Amount: 30})
	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.MoneyTransferred{Amount: 20, ToWalletID: "wallet-bob"})
	f.commit(ledger.WalletAggType, "wallet-bob", &ledger.MoneyDeposited{Amount: 20, Source: "wallet-alice"})

	rec, ok := p.Lookup("wallet-alice")
	require.True(t, ok)
	alice := rec.(proj.WalletBalance)
	require.Equal(t, "alice", alice.Owner)
	require.EqualValues(t, 50, alice.Balance)

	rec, ok = p.Lookup("wallet-bob")
	require.True(t, ok)
	require.EqualValues(t, 20, rec.(proj.WalletBalance).Balance)

	_, ok = p.Lookup("wallet-nobody")
	require.False(t, ok)
}

func TestBankSheets(t *testing.T) {
	f := newFixture(t)
	p := proj.NewBankSheets()
	f.subscribe(p)

	f.commit(ledger.BankAggType, "bank-1", &ledger.BankOpened{Name: "first national", ReserveRequirementBps: 1000})
	f.commit(ledger.BankAggType, "bank-1", &ledger.DepositAccepted{DepositorID: "wallet-alice", Amount: 1000})
	f.commit(ledger.BankAggType, "bank-1", &ledger.LoanIssued{BorrowerID: "wallet-bob", Amount: 400})
	f.commit(ledger.BankAggType, "bank-1", &ledger.WithdrawalProcessed{DepositorID: "wallet-alice", Amount: 100})
	f.commit(ledger.BankAggType, "bank-1", &ledger.LoanRepaid{BorrowerID: "wallet-bob", Amount: 150})

	rec, ok := p.Lookup("bank-1")
	require.True(t, ok)
	sheet := rec.(proj.BankSheet)
	require.Equal(t, "first national", sheet.Name)
	require.EqualValues(t, 650, sheet.Reserves)
	require.EqualValues(t, 900, sheet.TotalDeposits)
	require.EqualValues(t, 250, sheet.LoansOutstanding)
	require.False(t, sheet.Failed)

	f.commit(ledger.BankAggType, "bank-1", &ledger.BankFailed{Reason: "run"})
	rec, _ = p.Lookup("bank-1")
	require.True(t, rec.(proj.BankSheet).Failed)
}

func TestMoneySupply(t *testing.T) {
	f := newFixture(t)
	p := proj.NewMoneySupply()
	f.subscribe(p)

	_, ok := p.Lookup(proj.MoneySupplyKey)
	require.False(t, ok)

	f.commit(ledger.ReserveAggType, ledger.FederalReserveID, &ledger.ReserveEstablished{ExchangeRate: 100})
	f.commit(ledger.ReserveAggType, ledger.FederalReserveID, &ledger.GoldDeposited{DepositorWalletID: "wallet-alice", Bars: 3, CurrencyIssued: 300})
	f.commit(ledger.ReserveAggType, ledger.FederalReserveID, &ledger.ExchangeRateChanged{Rate: 200})
	f.commit(ledger.ReserveAggType, ledger.FederalReserveID, &ledger.GoldWithdrawn{Bars: 1, CurrencyRetired: 200})

	rec, ok := p.Lookup(proj.MoneySupplyKey)
	require.True(t, ok)
	sheet := rec.(proj.MoneySupplySheet)
	require.EqualValues(t, 2, sheet.GoldBars)
	require.EqualValues(t, 300, sheet.Issued)
	require.EqualValues(t, 200, sheet.Retired)
	require.EqualValues(t, 100, sheet.Circulation)
	require.EqualValues(t, 200, sheet.ExchangeRate)

	_, ok = p.Lookup("other")
	require.False(t, ok)
}

// A projection rebuilt from the log must match one that followed live.
func TestRebuildConvergence(t *testing.T) {
	f := newFixture(t)
	live := proj.NewWalletBalances()
	f.subscribe(live)

	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.WalletOpened{Owner: "alice"})
	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.MoneyDeposited{Amount: 500})
	f.commit(ledger.WalletAggType, "wallet-bob", &ledger.WalletOpened{Owner: "bob"})
	f.commit(ledger.WalletAggType, "wallet-alice", &ledger.MoneyTransferred{Amount: 120, ToWalletID: "wallet-bob"})
	f.commit(ledger.WalletAggType, "wallet-bob", &ledger.MoneyDeposited{Amount: 120, Source: "wallet-alice"})

	fresh := proj.NewWalletBalances()
	require.NoError(t, fresh.Rebuild(context.Background(), f.store))

	for _, id := range []string{"wallet-alice", "wallet-bob"} {
		want, ok := live.Lookup(id)
		require.True(t, ok)
		got, ok := fresh.Lookup(id)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

// Rebuild discards whatever state the projection had accumulated.
func TestRebuildResets(t *testing.T) {
	f := newFixture(t)
	p := proj.NewBankSheets()
	f.subscribe(p)

	f.commit(ledger.BankAggType, "bank-1", &ledger.BankOpened{Name: "first", ReserveRequirementBps: 1000})
	f.commit(ledger.BankAggType, "bank-1", &ledger.DepositAccepted{DepositorID: "wallet-alice", Amount: 100})

	// poison the state by double-applying, then rebuild
	require.NoError(t, p.Handle(mustMsg(t, f)))
	require.NoError(t, p.Rebuild(context.Background(), f.store))

	rec, ok := p.Lookup("bank-1")
	require.True(t, ok)
	require.EqualValues(t, 100, rec.(proj.BankSheet).Reserves)
}

func mustMsg(t *testing.T, f *fixture) es.MsgCtx {
	t.Helper()
	envs, err := f.store.ReadSince(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, envs)

	// replay the final envelope through the bus to a recorder to obtain
	// a MsgCtx the projection can ingest twice
	var captured es.MsgCtx
	rec := es.NewBus(slog.Default())
	rec.Subscribe("capture", es.HandleFunc(func(ctx es.MsgCtx) error {
		captured = ctx
		return nil
	}))

	last := envs[len(envs)-1]
	var e ledger.DepositAccepted
	require.NoError(t, json.Unmarshal(last.Data, &e))
	rec.Publish(context.Background(), last, &e)

	return captured
}
