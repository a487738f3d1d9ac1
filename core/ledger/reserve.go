package ledger

import (
	"fmt"

	"github.com/MyndPhreak/gamerp/core/es"
)

// === Events ===

type (
	ReserveEstablished struct {
		ExchangeRate int64 `json:"exchange_rate"`
	}

	// GoldDeposited is the only mechanism that increases the total
	// circulating currency: issued = bars * exchange rate at deposit time.
	GoldDeposited struct {
		DepositorWalletID string `json:"depositor_wallet_id"`
		Bars              int64  `json:"bars"`
		CurrencyIssued    int64  `json:"currency_issued"`
	}

	GoldWithdrawn struct {
		RedeemerWalletID string `json:"redeemer_wallet_id,omitempty"`
		Bars             int64  `json:"bars"`
		CurrencyRetired  int64  `json:"currency_retired"`
	}

	ExchangeRateChanged struct {
		Rate int64 `json:"rate"`
	}
)

func (ReserveEstablished) EventType() string  { return "reserve.established" }
func (GoldDeposited) EventType() string       { return "reserve.gold_deposited" }
func (GoldWithdrawn) EventType() string       { return "reserve.gold_withdrawn" }
func (ExchangeRateChanged) EventType() string { return "reserve.rate_changed" }

// === Aggregate ===

// FederalReserve is the central currency issuer: gold bars in, currency out.
// A singleton resolved under the well-known id FederalReserveID, replayed
// through the same repository path as every other aggregate.
type FederalReserve struct {
	es.BaseAggregate

	exchangeRate int64
	goldBars     int64
	circulation  int64
	established  bool
}

func (f *FederalReserve) GetAggType() string { return ReserveAggType }

func (f *FederalReserve) Register(r es.Registrar) {
	es.RegisterEvents(
		r,
		es.Event[ReserveEstablished](),
		es.Event[GoldDeposited](),
		es.Event[GoldWithdrawn](),
		es.Event[ExchangeRateChanged](),
	)
}

func (f *FederalReserve) Apply(evt any) error {
	switch e := evt.(type) {
	case *ReserveEstablished:
		f.exchangeRate = e.ExchangeRate
		f.established = true
	case *GoldDeposited:
		f.goldBars += e.Bars
		f.circulation += e.CurrencyIssued
	case *GoldWithdrawn:
		f.goldBars -= e.Bars
		f.circulation -= e.CurrencyRetired
	case *ExchangeRateChanged:
		f.exchangeRate = e.Rate
	default:
		return fmt.Errorf("unknown federal reserve event: %T", evt)
	}
	return nil
}

func (f *FederalReserve) ExchangeRate() int64 { return f.exchangeRate }
func (f *FederalReserve) GoldBars() int64     { return f.goldBars }
func (f *FederalReserve) Circulation() int64  { return f.circulation }
func (f *FederalReserve) IsEstablished() bool { return f.established }

func (f *FederalReserve) requireEstablished() error {
	if !f.established {
		return NotFound(CodeReserveNotFound, "federal reserve is not established")
	}
	return nil
}

// === Commands ===

// Establish sets up the reserve with its initial exchange rate
// (currency units issued per gold bar). The rate must stay > 0 at all times.
func (f *FederalReserve) Establish(exchangeRate int64) error {
	if f.established {
		return BusinessRule(CodeAlreadyExists, "federal reserve already established")
	}
	if exchangeRate <= 0 {
		return Validation(CodeInvalidExchangeRate, "exchange rate must be positive, got %d", exchangeRate)
	}
	return es.RaiseAndApply(f, &ReserveEstablished{ExchangeRate: exchangeRate})
}

// DepositGold stores bars and issues bars * exchangeRate currency units.
// Crediting the depositor's wallet is the mint process manager's job.
func (f *FederalReserve) DepositGold(depositorWalletID string, bars int64) error {
	if err := f.requireEstablished(); err != nil {
		return err
	}
	if bars <= 0 {
		return Validation(CodeNonPositiveAmount, "gold bars must be positive, got %d", bars)
	}
	if depositorWalletID == "" {
		return Validation(CodeInvalidCommand, "depositor wallet is required")
	}
	return es.RaiseAndApply(f, &GoldDeposited{
		DepositorWalletID: depositorWalletID,
		Bars:              bars,
		CurrencyIssued:    bars * f.exchangeRate,
	})
}

// WithdrawGold releases bars and retires the equivalent currency at the
// current exchange rate.
func (f *FederalReserve) WithdrawGold(redeemerWalletID string, bars int64) error {
	if err := f.requireEstablished(); err != nil {
		return err
	}
	if bars <= 0 {
		return Validation(CodeNonPositiveAmount, "gold bars must be positive, got %d", bars)
	}
	if bars > f.goldBars {
		return BusinessRule(CodeInsufficientGold, "gold reserves %d insufficient to withdraw %d bars", f.goldBars, bars)
	}
	return es.RaiseAndApply(f, &GoldWithdrawn{
		RedeemerWalletID: redeemerWalletID,
		Bars:             bars,
		CurrencyRetired:  bars * f.exchangeRate,
	})
}

func (f *FederalReserve) SetExchangeRate(rate int64) error {
	if err := f.requireEstablished(); err != nil {
		return err
	}
	if rate <= 0 {
		return Validation(CodeInvalidExchangeRate, "exchange rate must be positive, got %d", rate)
	}
	return es.RaiseAndApply(f, &ExchangeRateChanged{Rate: rate})
}

var _ es.Aggregate = (*FederalReserve)(nil)
