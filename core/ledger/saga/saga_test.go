package saga_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
	"github.com/MyndPhreak/gamerp/core/ledger/saga"
)

type recordingSubmitter struct {
	commands []ledger.Command
	fail     bool
}

func (r *recordingSubmitter) Submit(_ context.Context, cmd ledger.Command) ledger.Result {
	r.commands = append(r.commands, cmd)
	if r.fail {
		return ledger.Result{Err: ledger.BusinessRule(ledger.CodeInsufficientFunds, "nope")}
	}
	return ledger.Result{}
}

type namedHandler interface {
	es.Handler
	Name() string
	EventTypes() []string
}

// publish routes one event through a bus to the processor, the same path the
// service wires in production.
func publish(t *testing.T, h namedHandler, aggType, aggID string, evt es.EventTyper) {
	t.Helper()

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	bus := es.NewBus(slog.Default())
	bus.Subscribe(h.Name(), h, h.EventTypes()...)
	bus.Publish(context.Background(), es.Envelope{
		ID:            "ev-1",
		Seq:           1,
		Version:       1,
		AggregateType: aggType,
		AggregateID:   aggID,
		Type:          evt.EventType(),
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}, evt)
}

func TestTransferProcessor_CreditsDestination(t *testing.T) {
	sub := &recordingSubmitter{}
	p := saga.NewTransferProcessor(sub)

	publish(t, p, ledger.WalletAggType, "wallet-alice", &ledger.MoneyTransferred{Amount: 40, ToWalletID: "wallet-bob"})

	require.Len(t, sub.commands, 1)
	dep, ok := sub.commands[0].(ledger.DepositMoney)
	require.True(t, ok)
	require.Equal(t, "wallet-bob", dep.WalletID)
	require.EqualValues(t, 40, dep.Amount)
	require.Equal(t, "wallet-alice", dep.Source)
}

func TestTransferProcessor_FailureDoesNotPropagate(t *testing.T) {
	sub := &recordingSubmitter{fail: true}
	p := saga.NewTransferProcessor(sub)

	publish(t, p, ledger.WalletAggType, "wallet-alice", &ledger.MoneyTransferred{Amount: 40, ToWalletID: "wallet-bob"})

	// command was attempted; the rejection is logged, not retried
	require.Len(t, sub.commands, 1)
}

func TestMintProcessor_GoldDeposit(t *testing.T) {
	sub := &recordingSubmitter{}
	p := saga.NewMintProcessor(sub)

	publish(t, p, ledger.ReserveAggType, ledger.FederalReserveID, &ledger.GoldDeposited{
		DepositorWalletID: "wallet-alice",
		Bars:              2,
		CurrencyIssued:    200,
	})

	require.Len(t, sub.commands, 1)
	dep := sub.commands[0].(ledger.DepositMoney)
	require.Equal(t, "wallet-alice", dep.WalletID)
	require.EqualValues(t, 200, dep.Amount)
	require.Equal(t, ledger.FederalReserveID, dep.Source)
}

func TestMintProcessor_GoldWithdrawal(t *testing.T) {
	sub := &recordingSubmitter{}
	p := saga.NewMintProcessor(sub)

	publish(t, p, ledger.ReserveAggType, ledger.FederalReserveID, &ledger.GoldWithdrawn{
		RedeemerWalletID: "wallet-alice",
		Bars:             1,
		CurrencyRetired:  100,
	})

	require.Len(t, sub.commands, 1)
	wd := sub.commands[0].(ledger.WithdrawMoney)
	require.Equal(t, "wallet-alice", wd.WalletID)
	require.EqualValues(t, 100, wd.Amount)
}

func TestMintProcessor_WithdrawalWithoutRedeemer(t *testing.T) {
	sub := &recordingSubmitter{}
	p := saga.NewMintProcessor(sub)

	publish(t, p, ledger.ReserveAggType, ledger.FederalReserveID, &ledger.GoldWithdrawn{Bars: 1, CurrencyRetired: 100})

	require.Empty(t, sub.commands)
}

func TestTreasuryProcessor(t *testing.T) {
	sub := &recordingSubmitter{}
	p := saga.NewTreasuryProcessor(sub)

	publish(t, p, ledger.GovernmentAggType, ledger.GovernmentID, &ledger.SalaryPaid{EmployeeWalletID: "wallet-cop", Amount: 300})
	publish(t, p, ledger.GovernmentAggType, ledger.GovernmentID, &ledger.ContractAwarded{ContractorWalletID: "wallet-builder", Amount: 900})

	require.Len(t, sub.commands, 2)

	salary := sub.commands[0].(ledger.DepositMoney)
	require.Equal(t, "wallet-cop", salary.WalletID)
	require.EqualValues(t, 300, salary.Amount)
	require.Equal(t, ledger.GovernmentID, salary.Source)

	award := sub.commands[1].(ledger.DepositMoney)
	require.Equal(t, "wallet-builder", award.WalletID)
	require.EqualValues(t, 900, award.Amount)
}
