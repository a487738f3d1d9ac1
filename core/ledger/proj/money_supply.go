package proj

import (
	"context"
	"sync"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
)

const (
	MoneySupplyName = "money-supply"

	// MoneySupplyKey is the single key the money-supply projection serves.
	MoneySupplyKey = "supply"
)

// MoneySupplySheet tracks the economy-wide totals folded from the federal
// reserve's stream: gold held, currency issued and retired, and the
// resulting circulation.
type MoneySupplySheet struct {
	GoldBars     int64 `json:"gold_bars"`
	Issued       int64 `json:"issued"`
	Retired      int64 `json:"retired"`
	Circulation  int64 `json:"circulation"`
	ExchangeRate int64 `json:"exchange_rate"`
}

type MoneySupply struct {
	mu    sync.RWMutex
	sheet MoneySupplySheet
	seen  bool
}

func NewMoneySupply() *MoneySupply {
	return &MoneySupply{}
}

func (p *MoneySupply) Name() string { return MoneySupplyName }

func (p *MoneySupply) EventTypes() []string {
	return []string{
		ledger.ReserveEstablished{}.EventType(),
		ledger.GoldDeposited{}.EventType(),
		ledger.GoldWithdrawn{}.EventType(),
		ledger.ExchangeRateChanged{}.EventType(),
	}
}

func (p *MoneySupply) Handle(ctx es.MsgCtx) error {
	return p.apply(ctx.Envelope())
}

func (p *MoneySupply) Lookup(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if key != MoneySupplyKey || !p.seen {
		return nil, false
	}
	return p.sheet, true
}

func (p *MoneySupply) Rebuild(ctx context.Context, store es.EventStore) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return rebuild(ctx, store,
		func() { p.sheet, p.seen = MoneySupplySheet{}, false },
		p.applyLocked,
	)
}

func (p *MoneySupply) apply(env es.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(env)
}

func (p *MoneySupply) applyLocked(env es.Envelope) error {
	switch env.Type {
	case ledger.ReserveEstablished{}.EventType():
		var e ledger.ReserveEstablished
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		p.sheet.ExchangeRate = e.ExchangeRate
	case ledger.GoldDeposited{}.EventType():
		var e ledger.GoldDeposited
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		p.sheet.GoldBars += e.Bars
		p.sheet.Issued += e.CurrencyIssued
		p.sheet.Circulation += e.CurrencyIssued
	case ledger.GoldWithdrawn{}.EventType():
		var e ledger.GoldWithdrawn
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		p.sheet.GoldBars -= e.Bars
		p.sheet.Retired += e.CurrencyRetired
		p.sheet.Circulation -= e.CurrencyRetired
	case ledger.ExchangeRateChanged{}.EventType():
		var e ledger.ExchangeRateChanged
		if err := decodeInto(env, &e); err != nil {
			return err
		}
		p.sheet.ExchangeRate = e.Rate
	default:
		return nil
	}

	p.seen = true
	return nil
}

var _ Projection = (*MoneySupply)(nil)
