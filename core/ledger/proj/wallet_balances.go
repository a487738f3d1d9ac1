package proj

import (
	"context"
	"sync"
	"time"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
)

const WalletBalancesName = "wallet-balances"

// WalletBalance is the per-wallet record served by the wallet-balances
// projection, keyed by wallet id.
type WalletBalance struct {
	WalletID  string    `json:"wallet_id"`
	Owner     string    `json:"owner"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WalletBalances struct {
	mu      sync.RWMutex
	wallets map[string]WalletBalance
}

func NewWalletBalances() *WalletBalances {
	return &WalletBalances{wallets: map[string]WalletBalance{}}
}

func (p *WalletBalances) Name() string { return WalletBalancesName }

func (p *WalletBalances) EventTypes() []string {
	return []string{
		ledger.WalletOpened{}.EventType(),
		ledger.MoneyDeposited{}.EventType(),
		ledger.MoneyWithdrawn{}.EventType(),
		ledger.MoneyTransferred{}.EventType(),
	}
}

func (p *WalletBalances) Handle(ctx es.MsgCtx) error {
	return p.apply(ctx.Envelope())
}

func (p *WalletBalances) Lookup(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.wallets[key]
	return rec, ok
}

func (p *WalletBalances) Rebuild(ctx context.Context, store es.EventStore) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return rebuild(ctx, store,
		func() { p.wallets = map[string]WalletBalance{} },
		p.applyLocked,
	)
}

func (p *WalletBalances) apply(env es.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(env)
}

func (p *WalletBalances) applyLocked(env es.Envelope) error {
	rec := p.wallets[env.AggregateID]
	rec.WalletID = env.AggregateID

	switch env.Type {
	case ledger.WalletOpened{}.EventType():
		var e ledger.WalletOpened
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Owner = e.Owner
	case ledger.MoneyDeposited{}.EventType():
		var e ledger.MoneyDeposited
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Balance += e.Amount
	case ledger.MoneyWithdrawn{}.EventType():
		var e ledger.MoneyWithdrawn
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Balance -= e.Amount
	case ledger.MoneyTransferred{}.EventType():
		var e ledger.MoneyTransferred
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		rec.Balance -= e.Amount
	default:
		return nil
	}

	rec.UpdatedAt = env.OccurredAt
	p.wallets[env.AggregateID] = rec
	return nil
}

var _ Projection = (*WalletBalances)(nil)
