package ledger

import (
	"fmt"

	"github.com/MyndPhreak/gamerp/core/es"
)

// === Events ===

type (
	// WalletOpened establishes the wallet stream. Owner may be empty when
	// the wallet was opened implicitly by a first deposit.
	WalletOpened struct {
		Owner string `json:"owner,omitempty"`
	}

	MoneyDeposited struct {
		Amount int64  `json:"amount"`
		Source string `json:"source,omitempty"`
	}

	MoneyWithdrawn struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason,omitempty"`
	}

	// MoneyTransferred is the debit half of a transfer. The credit to the
	// destination wallet is a separate command issued by a process manager,
	// not part of the same transaction.
	MoneyTransferred struct {
		Amount     int64  `json:"amount"`
		ToWalletID string `json:"to_wallet_id"`
	}
)

func (WalletOpened) EventType() string     { return "wallet.opened" }
func (MoneyDeposited) EventType() string   { return "wallet.money_deposited" }
func (MoneyWithdrawn) EventType() string   { return "wallet.money_withdrawn" }
func (MoneyTransferred) EventType() string { return "wallet.money_transferred" }

// === Aggregate ===

// Wallet is a player's currency balance, folded from its event stream.
type Wallet struct {
	es.BaseAggregate

	owner   string
	balance int64
	opened  bool
}

func (w *Wallet) GetAggType() string { return WalletAggType }

func (w *Wallet) Register(r es.Registrar) {
	es.RegisterEvents(
		r,
		es.Event[WalletOpened](),
		es.Event[MoneyDeposited](),
		es.Event[MoneyWithdrawn](),
		es.Event[MoneyTransferred](),
	)
}

func (w *Wallet) Apply(evt any) error {
	switch e := evt.(type) {
	case *WalletOpened:
		w.owner = e.Owner
		w.opened = true
	case *MoneyDeposited:
		w.balance += e.Amount
	case *MoneyWithdrawn:
		w.balance -= e.Amount
	case *MoneyTransferred:
		w.balance -= e.Amount
	default:
		return fmt.Errorf("unknown wallet event: %T", evt)
	}
	return nil
}

func (w *Wallet) Owner() string  { return w.owner }
func (w *Wallet) Balance() int64 { return w.balance }
func (w *Wallet) IsOpen() bool   { return w.opened }

func (w *Wallet) requireOpen() error {
	if !w.opened {
		return NotFound(CodeWalletNotFound, "wallet %s does not exist", w.GetID())
	}
	return nil
}

// === Commands ===

// Open establishes the wallet.
func (w *Wallet) Open(owner string) error {
	if w.opened {
		return BusinessRule(CodeAlreadyExists, "wallet %s already open", w.GetID())
	}
	return es.RaiseAndApply(w, &WalletOpened{Owner: owner})
}

// Deposit credits the wallet. A deposit into a wallet that does not exist
// yet opens it first, so a fresh wallet's stream is open + deposit.
func (w *Wallet) Deposit(amount int64, source string) error {
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "deposit amount must be positive, got %d", amount)
	}
	if !w.opened {
		if err := w.Open(""); err != nil {
			return err
		}
	}
	return es.RaiseAndApply(w, &MoneyDeposited{Amount: amount, Source: source})
}

// Withdraw debits the wallet. Fails when the balance does not cover amount;
// no sequence of valid commands can take the balance negative.
func (w *Wallet) Withdraw(amount int64, reason string) error {
	if err := w.requireOpen(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "withdrawal amount must be positive, got %d", amount)
	}
	if amount > w.balance {
		return BusinessRule(CodeInsufficientFunds, "insufficient funds: balance=%d requested=%d", w.balance, amount)
	}
	return es.RaiseAndApply(w, &MoneyWithdrawn{Amount: amount, Reason: reason})
}

// Transfer debits the wallet in favor of toWalletID. Only the debit is
// raised here; crediting the destination is the transfer process manager's
// responsibility.
func (w *Wallet) Transfer(amount int64, toWalletID string) error {
	if err := w.requireOpen(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "transfer amount must be positive, got %d", amount)
	}
	if toWalletID == "" {
		return Validation(CodeInvalidCommand, "transfer destination is required")
	}
	if toWalletID == w.GetID() {
		return Validation(CodeInvalidCommand, "cannot transfer to the same wallet")
	}
	if amount > w.balance {
		return BusinessRule(CodeInsufficientFunds, "insufficient funds: balance=%d requested=%d", w.balance, amount)
	}
	return es.RaiseAndApply(w, &MoneyTransferred{Amount: amount, ToWalletID: toWalletID})
}

var _ es.Aggregate = (*Wallet)(nil)
