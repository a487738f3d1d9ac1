package proj

import (
	"context"
	"sync"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
)

const BankSheetName = "bank-sheet"

// BankSheet is the per-bank balance sheet record, keyed by bank id.
type BankSheet struct {
	BankID                string `json:"bank_id"`
	Name                  string `json:"name"`
	Reserves              int64  `json:"reserves"`
	TotalDeposits         int64  `json:"total_deposits"`
	LoansOutstanding      int64  `json:"loans_outstanding"`
	ReserveRequirementBps int64  `json:"reserve_requirement_bps"`
	Failed                bool   `json:"failed"`
}

type BankSheets struct {
	mu    sync.RWMutex
	banks map[string]BankSheet
}

func NewBankSheets() *BankSheets {
	return &BankSheets{banks: map[string]BankSheet{}}
}

func (p *BankSheets) Name() string { return BankSheetName }

func (p *BankSheets) EventTypes() []string {
	return []string{
		ledger.BankOpened{}.EventType(),
		ledger.DepositAccepted{}.EventType(),
		ledger.WithdrawalProcessed{}.EventType(),
		ledger.LoanIssued{}.EventType(),
		ledger.LoanRepaid{}.EventType(),
		ledger.BankFailed{}.EventType(),
	}
}

func (p *BankSheets) Handle(ctx es.MsgCtx) error {
	return p.apply(ctx.Envelope())
}

func (p *BankSheets) Lookup(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.banks[key]
	return rec, ok
}

func (p *BankSheets) Rebuild(ctx context.Context, store es.EventStore) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return rebuild(ctx, store,
		func() { p.banks = map[string]BankSheet{} },
		p.applyLocked,
	)
}

func (p *BankSheets) apply(env es.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(env)
}

func (p *BankSheets) applyLocked(env es.Envelope) error {
	rec := p.banks[env.AggregateID]
	rec.BankID = env.AggregateID

	switch env.Type {
	case ledger.BankOpened{}.EventType():
		var e ledger.BankOpened
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Name = e.Name
		rec.ReserveRequirementBps = e.ReserveRequirementBps
	case ledger.DepositAccepted{}.EventType():
		var e ledger.DepositAccepted
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Reserves += e.Amount
		rec.TotalDeposits += e.Amount
	case ledger.WithdrawalProcessed{}.EventType():
		var e ledger.WithdrawalProcessed
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Reserves -= e.Amount
		rec.TotalDeposits -= e.Amount
	case ledger.LoanIssued{}.EventType():
		var e ledger.LoanIssued
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Reserves -= e.Amount
		rec.LoansOutstanding += e.Amount
	case ledger.LoanRepaid{}.EventType():
		var e ledger.LoanRepaid
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Reserves += e.Amount
		rec.LoansOutstanding -= e.Amount
	case ledger.BankFailed{}.EventType():
		rec.Failed = true
	default:
		return nil
	}

	p.banks[env.AggregateID] = rec
	return nil
}

var _ Projection = (*BankSheets)(nil)
