package ledger

import (
	"fmt"

	"github.com/MyndPhreak/gamerp/core/es"
)

// DefaultReserveRequirementBps is the fraction of deposits a bank must keep
// as non-loaned reserves, in basis points (1000 = 10%).
const DefaultReserveRequirementBps int64 = 1000

// === Events ===

type (
	BankOpened struct {
		Name                  string `json:"name"`
		ReserveRequirementBps int64  `json:"reserve_requirement_bps"`
	}

	DepositAccepted struct {
		DepositorID string `json:"depositor_id"`
		Amount      int64  `json:"amount"`
	}

	WithdrawalProcessed struct {
		DepositorID string `json:"depositor_id"`
		Amount      int64  `json:"amount"`
	}

	LoanIssued struct {
		BorrowerID string `json:"borrower_id"`
		Amount     int64  `json:"amount"`
	}

	LoanRepaid struct {
		BorrowerID string `json:"borrower_id"`
		Amount     int64  `json:"amount"`
	}

	// BankFailed records insolvency: reserves could not honor withdrawal
	// demand. Terminal - the bank is never deleted, failure is a fact in
	// its stream.
	BankFailed struct {
		Reason string `json:"reason"`
	}
)

func (BankOpened) EventType() string          { return "bank.opened" }
func (DepositAccepted) EventType() string     { return "bank.deposit_accepted" }
func (WithdrawalProcessed) EventType() string { return "bank.withdrawal_processed" }
func (LoanIssued) EventType() string          { return "bank.loan_issued" }
func (LoanRepaid) EventType() string          { return "bank.loan_repaid" }
func (BankFailed) EventType() string          { return "bank.failed" }

// === Aggregate ===

// Bank holds customer deposits and issues loans against its reserves.
// States: Active -> Failed (on insolvency, terminal).
type Bank struct {
	es.BaseAggregate

	name                  string
	reserves              int64
	totalDeposits         int64
	loansOutstanding      int64
	reserveRequirementBps int64
	opened                bool
	failed                bool
}

func (b *Bank) GetAggType() string { return BankAggType }

func (b *Bank) Register(r es.Registrar) {
	es.RegisterEvents(
		r,
		es.Event[BankOpened](),
		es.Event[DepositAccepted](),
		es.Event[WithdrawalProcessed](),
		es.Event[LoanIssued](),
		es.Event[LoanRepaid](),
		es.Event[BankFailed](),
	)
}

func (b *Bank) Apply(evt any) error {
	switch e := evt.(type) {
	case *BankOpened:
		b.name = e.Name
		b.reserveRequirementBps = e.ReserveRequirementBps
		b.opened = true
	case *DepositAccepted:
		b.reserves += e.Amount
		b.totalDeposits += e.Amount
	case *WithdrawalProcessed:
		b.reserves -= e.Amount
		b.totalDeposits -= e.Amount
	case *LoanIssued:
		b.reserves -= e.Amount
		b.loansOutstanding += e.Amount
	case *LoanRepaid:
		b.reserves += e.Amount
		b.loansOutstanding -= e.Amount
	case *BankFailed:
		b.failed = true
	default:
		return fmt.Errorf("unknown bank event: %T", evt)
	}
	return nil
}

func (b *Bank) Name() string                 { return b.name }
func (b *Bank) Reserves() int64              { return b.reserves }
func (b *Bank) TotalDeposits() int64         { return b.totalDeposits }
func (b *Bank) LoansOutstanding() int64      { return b.loansOutstanding }
func (b *Bank) ReserveRequirementBps() int64 { return b.reserveRequirementBps }
func (b *Bank) IsOpen() bool                 { return b.opened }
func (b *Bank) IsFailed() bool               { return b.failed }

func (b *Bank) requireActive() error {
	if !b.opened {
		return NotFound(CodeBankNotFound, "bank %s does not exist", b.GetID())
	}
	if b.failed {
		return BusinessRule(CodeBankInsolvent, "bank %s is insolvent", b.GetID())
	}
	return nil
}

// === Commands ===

func (b *Bank) Open(name string, reserveRequirementBps int64) error {
	if b.opened {
		return BusinessRule(CodeAlreadyExists, "bank %s already open", b.GetID())
	}
	if name == "" {
		return Validation(CodeInvalidCommand, "bank name is required")
	}
	if reserveRequirementBps == 0 {
		reserveRequirementBps = DefaultReserveRequirementBps
	}
	if reserveRequirementBps < 0 || reserveRequirementBps > 10000 {
		return Validation(CodeInvalidCommand, "reserve requirement must be within (0, 10000] bps, got %d", reserveRequirementBps)
	}
	return es.RaiseAndApply(b, &BankOpened{Name: name, ReserveRequirementBps: reserveRequirementBps})
}

func (b *Bank) AcceptDeposit(depositorID string, amount int64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "deposit amount must be positive, got %d", amount)
	}
	return es.RaiseAndApply(b, &DepositAccepted{DepositorID: depositorID, Amount: amount})
}

// ProcessWithdrawal pays out a customer withdrawal from reserves. A demand
// the reserves cannot honor does not simply fail: it raises BankFailed
// (insolvency, terminal) and the withdrawal itself is rejected. Callers must
// persist the raised events even though the command reports failure.
func (b *Bank) ProcessWithdrawal(depositorID string, amount int64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "withdrawal amount must be positive, got %d", amount)
	}
	if amount > b.reserves {
		if err := es.RaiseAndApply(b, &BankFailed{
			Reason: fmt.Sprintf("reserves %d insufficient to honor withdrawal of %d", b.reserves, amount),
		}); err != nil {
			return err
		}
		return BusinessRule(CodeInsufficientReserves, "reserves %d insufficient to honor withdrawal of %d", b.reserves, amount)
	}
	return es.RaiseAndApply(b, &WithdrawalProcessed{DepositorID: depositorID, Amount: amount})
}

// IssueLoan lends from reserves. The loan is rejected when honoring it would
// push reserves/totalDeposits below the reserve requirement.
func (b *Bank) IssueLoan(borrowerID string, amount int64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "loan amount must be positive, got %d", amount)
	}
	if amount > b.reserves {
		return BusinessRule(CodeInsufficientReserves, "reserves %d insufficient to issue loan of %d", b.reserves, amount)
	}
	if (b.reserves-amount)*10000 < b.reserveRequirementBps*b.totalDeposits {
		return BusinessRule(
			CodeReserveRatioBreach,
			"loan of %d would push reserves below the %d bps requirement (reserves=%d deposits=%d)",
			amount, b.reserveRequirementBps, b.reserves, b.totalDeposits,
		)
	}
	return es.RaiseAndApply(b, &LoanIssued{BorrowerID: borrowerID, Amount: amount})
}

func (b *Bank) RepayLoan(borrowerID string, amount int64) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "repayment amount must be positive, got %d", amount)
	}
	if amount > b.loansOutstanding {
		return BusinessRule(CodeExcessRepayment, "repayment %d exceeds outstanding loans %d", amount, b.loansOutstanding)
	}
	return es.RaiseAndApply(b, &LoanRepaid{BorrowerID: borrowerID, Amount: amount})
}

var _ es.Aggregate = (*Bank)(nil)
