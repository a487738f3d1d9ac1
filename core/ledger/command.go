package ledger

import "github.com/MyndPhreak/gamerp/core/es"

// Command is the closed set of operations the ledger accepts. Kind routes
// dispatch, AggregateID addresses the target stream, Validate performs the
// stateless checks that can fail before any aggregate is loaded.
type Command interface {
	Kind() string
	AggregateID() string
	Validate() error
}

// Result is the outcome of a single command submission. On success Events
// carries the envelopes persisted by the command, in commit order.
type Result struct {
	CommandID string
	Events    []es.Envelope
	Err       *Error
}

func (r Result) OK() bool { return r.Err == nil }

func requirePositive(amount int64) error {
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "amount must be positive, got %d", amount)
	}
	return nil
}

func requireID(id, field string) error {
	if id == "" {
		return Validation(CodeInvalidCommand, "%s is required", field)
	}
	return nil
}

// === Wallet commands ===

type OpenWallet struct {
	WalletID string
	Owner    string
}

func (c OpenWallet) Kind() string        { return "open-wallet" }
func (c OpenWallet) AggregateID() string { return c.WalletID }
func (c OpenWallet) Validate() error     { return requireID(c.WalletID, "wallet id") }

type DepositMoney struct {
	WalletID string
	Amount   int64
	Source   string
}

func (c DepositMoney) Kind() string        { return "deposit-money" }
func (c DepositMoney) AggregateID() string { return c.WalletID }
func (c DepositMoney) Validate() error {
	if err := requireID(c.WalletID, "wallet id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type WithdrawMoney struct {
	WalletID string
	Amount   int64
	Reason   string
}

func (c WithdrawMoney) Kind() string        { return "withdraw-money" }
func (c WithdrawMoney) AggregateID() string { return c.WalletID }
func (c WithdrawMoney) Validate() error {
	if err := requireID(c.WalletID, "wallet id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type TransferMoney struct {
	WalletID   string
	ToWalletID string
	Amount     int64
}

func (c TransferMoney) Kind() string        { return "transfer-money" }
func (c TransferMoney) AggregateID() string { return c.WalletID }
func (c TransferMoney) Validate() error {
	if err := requireID(c.WalletID, "wallet id"); err != nil {
		return err
	}
	if err := requireID(c.ToWalletID, "destination wallet id"); err != nil {
		return err
	}
	if c.ToWalletID == c.WalletID {
		return Validation(CodeInvalidCommand, "cannot transfer to the same wallet")
	}
	return requirePositive(c.Amount)
}

// === Bank commands ===

type OpenBank struct {
	BankID                string
	Name                  string
	ReserveRequirementBps int64
}

func (c OpenBank) Kind() string        { return "open-bank" }
func (c OpenBank) AggregateID() string { return c.BankID }
func (c OpenBank) Validate() error     { return requireID(c.BankID, "bank id") }

type AcceptDeposit struct {
	BankID      string
	DepositorID string
	Amount      int64
}

func (c AcceptDeposit) Kind() string        { return "accept-deposit" }
func (c AcceptDeposit) AggregateID() string { return c.BankID }
func (c AcceptDeposit) Validate() error {
	if err := requireID(c.BankID, "bank id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type ProcessWithdrawal struct {
	BankID      string
	DepositorID string
	Amount      int64
}

func (c ProcessWithdrawal) Kind() string        { return "process-withdrawal" }
func (c ProcessWithdrawal) AggregateID() string { return c.BankID }
func (c ProcessWithdrawal) Validate() error {
	if err := requireID(c.BankID, "bank id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type IssueLoan struct {
	BankID     string
	BorrowerID string
	Amount     int64
}

func (c IssueLoan) Kind() string        { return "issue-loan" }
func (c IssueLoan) AggregateID() string { return c.BankID }
func (c IssueLoan) Validate() error {
	if err := requireID(c.BankID, "bank id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type RepayLoan struct {
	BankID     string
	BorrowerID string
	Amount     int64
}

func (c RepayLoan) Kind() string        { return "repay-loan" }
func (c RepayLoan) AggregateID() string { return c.BankID }
func (c RepayLoan) Validate() error {
	if err := requireID(c.BankID, "bank id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

// === Federal reserve commands ===

type EstablishReserve struct {
	ExchangeRate int64
}

func (c EstablishReserve) Kind() string        { return "establish-reserve" }
func (c EstablishReserve) AggregateID() string { return FederalReserveID }
func (c EstablishReserve) Validate() error {
	if c.ExchangeRate <= 0 {
		return Validation(CodeInvalidExchangeRate, "exchange rate must be positive, got %d", c.ExchangeRate)
	}
	return nil
}

type DepositGold struct {
	DepositorWalletID string
	Bars              int64
}

func (c DepositGold) Kind() string        { return "deposit-gold" }
func (c DepositGold) AggregateID() string { return FederalReserveID }
func (c DepositGold) Validate() error {
	if err := requireID(c.DepositorWalletID, "depositor wallet id"); err != nil {
		return err
	}
	return requirePositive(c.Bars)
}

type WithdrawGold struct {
	RedeemerWalletID string
	Bars             int64
}

func (c WithdrawGold) Kind() string        { return "withdraw-gold" }
func (c WithdrawGold) AggregateID() string { return FederalReserveID }
func (c WithdrawGold) Validate() error     { return requirePositive(c.Bars) }

type SetExchangeRate struct {
	Rate int64
}

func (c SetExchangeRate) Kind() string        { return "set-exchange-rate" }
func (c SetExchangeRate) AggregateID() string { return FederalReserveID }
func (c SetExchangeRate) Validate() error {
	if c.Rate <= 0 {
		return Validation(CodeInvalidExchangeRate, "exchange rate must be positive, got %d", c.Rate)
	}
	return nil
}

// === Government commands ===

type FormGovernment struct{}

func (c FormGovernment) Kind() string        { return "form-government" }
func (c FormGovernment) AggregateID() string { return GovernmentID }
func (c FormGovernment) Validate() error     { return nil }

type CollectTax struct {
	TaxpayerID string
	Amount     int64
	Category   string
}

func (c CollectTax) Kind() string        { return "collect-tax" }
func (c CollectTax) AggregateID() string { return GovernmentID }
func (c CollectTax) Validate() error     { return requirePositive(c.Amount) }

type PaySalary struct {
	EmployeeWalletID string
	Amount           int64
}

func (c PaySalary) Kind() string        { return "pay-salary" }
func (c PaySalary) AggregateID() string { return GovernmentID }
func (c PaySalary) Validate() error {
	if err := requireID(c.EmployeeWalletID, "employee wallet id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}

type AwardContract struct {
	ContractorWalletID string
	Amount             int64
}

func (c AwardContract) Kind() string        { return "award-contract" }
func (c AwardContract) AggregateID() string { return GovernmentID }
func (c AwardContract) Validate() error {
	if err := requireID(c.ContractorWalletID, "contractor wallet id"); err != nil {
		return err
	}
	return requirePositive(c.Amount)
}
