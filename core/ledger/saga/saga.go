// Package saga holds the process managers that react to committed events by
// issuing follow-up commands. Cross-aggregate flows (transfers, minting,
// treasury payouts) are not atomic: the triggering event is already
// committed, so a failed follow-up command is logged and left for operators
// rather than compensated automatically.
package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
)

// Submitter issues commands on behalf of a process manager. The ledger
// service implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd ledger.Command) ledger.Result
}

func decodeInto(env es.Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s event %s: %w", env.Type, env.ID, err)
	}
	return nil
}

// submit runs the follow-up command and logs the outcome. Failures do not
// propagate: the event that triggered us is committed history.
func submit(ctx es.MsgCtx, s Submitter, cmd ledger.Command) {
	res := s.Submit(ctx.Context(), cmd)
	if !res.OK() {
		ctx.Log().Error(
			"follow-up command rejected",
			slog.String("command", cmd.Kind()),
			slog.String("target", cmd.AggregateID()),
			slog.Any("error", res.Err),
		)
		return
	}
	ctx.Log().Debug(
		"follow-up command applied",
		slog.String("command", cmd.Kind()),
		slog.String("target", cmd.AggregateID()),
	)
}

// === transfer ===

// TransferProcessor completes wallet-to-wallet transfers: the debit event on
// the source wallet triggers a deposit into the destination wallet.
type TransferProcessor struct {
	submitter Submitter
}

func NewTransferProcessor(s Submitter) *TransferProcessor {
	return &TransferProcessor{submitter: s}
}

func (p *TransferProcessor) Name() string { return "saga-transfer" }

func (p *TransferProcessor) EventTypes() []string {
	return []string{ledger.MoneyTransferred{}.EventType()}
}

func (p *TransferProcessor) Handle(ctx es.MsgCtx) error {
	var e ledger.MoneyTransferred
	if err := decodeInto(ctx.Envelope(), &e); err != nil {
		return err
	}

	submit(ctx, p.submitter, ledger.DepositMoney{
		WalletID: e.ToWalletID,
		Amount:   e.Amount,
		Source:   ctx.AggregateID(),
	})
	return nil
}

// === mint ===

// MintProcessor moves currency between the reserve and player wallets: a
// gold deposit credits the depositor with the issued currency, a redemption
// debits the redeemer with the retired currency.
type MintProcessor struct {
	submitter Submitter
}

func NewMintProcessor(s Submitter) *MintProcessor {
	return &MintProcessor{submitter: s}
}

func (p *MintProcessor) Name() string { return "saga-mint" }

func (p *MintProcessor) EventTypes() []string {
	return []string{
		ledger.GoldDeposited{}.EventType(),
		ledger.GoldWithdrawn{}.EventType(),
	}
}

func (p *MintProcessor) Handle(ctx es.MsgCtx) error {
	switch ctx.Type() {
	case ledger.GoldDeposited{}.EventType():
		var e ledger.GoldDeposited
		if err := decodeInto(ctx.Envelope(), &e); err != nil {
			return err
		}
		submit(ctx, p.submitter, ledger.DepositMoney{
			WalletID: e.DepositorWalletID,
			Amount:   e.CurrencyIssued,
			Source:   ledger.FederalReserveID,
		})
	case ledger.GoldWithdrawn{}.EventType():
		var e ledger.GoldWithdrawn
		if err := decodeInto(ctx.Envelope(), &e); err != nil {
			return err
		}
		if e.RedeemerWalletID == "" {
			return nil
		}
		submit(ctx, p.submitter, ledger.WithdrawMoney{
			WalletID: e.RedeemerWalletID,
			Amount:   e.CurrencyRetired,
			Reason:   "gold redemption",
		})
	}
	return nil
}

// === treasury ===

// TreasuryProcessor delivers government spending: salaries and contract
// awards are credited to the recipient's wallet once the treasury debit has
// committed.
type TreasuryProcessor struct {
	submitter Submitter
}

func NewTreasuryProcessor(s Submitter) *TreasuryProcessor {
	return &TreasuryProcessor{submitter: s}
}

func (p *TreasuryProcessor) Name() string { return "saga-treasury" }

func (p *TreasuryProcessor) EventTypes() []string {
	return []string{
		ledger.SalaryPaid{}.EventType(),
		ledger.ContractAwarded{}.EventType(),
	}
}

func (p *TreasuryProcessor) Handle(ctx es.MsgCtx) error {
	var (
		wallet string
		amount int64
	)

	switch ctx.Type() {
	case ledger.SalaryPaid{}.EventType():
		var e ledger.SalaryPaid
		if err := decodeInto(ctx.Envelope(), &e); err != nil {
			return err
		}
		wallet, amount = e.EmployeeWalletID, e.Amount
	case ledger.ContractAwarded{}.EventType():
		var e ledger.ContractAwarded
		if err := decodeInto(ctx.Envelope(), &e); err != nil {
			return err
		}
		wallet, amount = e.ContractorWalletID, e.Amount
	default:
		return nil
	}

	submit(ctx, p.submitter, ledger.DepositMoney{
		WalletID: wallet,
		Amount:   amount,
		Source:   ledger.GovernmentID,
	})
	return nil
}

var (
	_ es.Handler = (*TransferProcessor)(nil)
	_ es.Handler = (*MintProcessor)(nil)
	_ es.Handler = (*TreasuryProcessor)(nil)
)
