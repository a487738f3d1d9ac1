package ledger

import (
	"fmt"

	"github.com/MyndPhreak/gamerp/core/es"
)

// === Events ===

type (
	GovernmentFormed struct{}

	TaxCollected struct {
		TaxpayerID string `json:"taxpayer_id"`
		Amount     int64  `json:"amount"`
		Category   string `json:"category,omitempty"`
	}

	SalaryPaid struct {
		EmployeeWalletID string `json:"employee_wallet_id"`
		Amount           int64  `json:"amount"`
	}

	ContractAwarded struct {
		ContractorWalletID string `json:"contractor_wallet_id"`
		Amount             int64  `json:"amount"`
	}
)

func (GovernmentFormed) EventType() string { return "government.formed" }
func (TaxCollected) EventType() string     { return "government.tax_collected" }
func (SalaryPaid) EventType() string       { return "government.salary_paid" }
func (ContractAwarded) EventType() string  { return "government.contract_awarded" }

// === Aggregate ===

// Government tracks the public treasury. Taxes flow in, salaries and
// contract awards flow out. The treasury can never go negative. A singleton
// resolved under GovernmentID.
type Government struct {
	es.BaseAggregate

	treasury        int64
	lifetimeRevenue int64
	formed          bool
}

func (g *Government) GetAggType() string { return GovernmentAggType }

func (g *Government) Register(r es.Registrar) {
	es.RegisterEvents(
		r,
		es.Event[GovernmentFormed](),
		es.Event[TaxCollected](),
		es.Event[SalaryPaid](),
		es.Event[ContractAwarded](),
	)
}

func (g *Government) Apply(evt any) error {
	switch e := evt.(type) {
	case *GovernmentFormed:
		g.formed = true
	case *TaxCollected:
		g.treasury += e.Amount
		g.lifetimeRevenue += e.Amount
	case *SalaryPaid:
		g.treasury -= e.Amount
	case *ContractAwarded:
		g.treasury -= e.Amount
	default:
		return fmt.Errorf("unknown government event: %T", evt)
	}
	return nil
}

func (g *Government) Treasury() int64        { return g.treasury }
func (g *Government) LifetimeRevenue() int64 { return g.lifetimeRevenue }
func (g *Government) IsFormed() bool         { return g.formed }

func (g *Government) requireFormed() error {
	if !g.formed {
		return NotFound(CodeGovernmentNotFound, "government is not formed")
	}
	return nil
}

// === Commands ===

func (g *Government) Form() error {
	if g.formed {
		return BusinessRule(CodeAlreadyExists, "government already formed")
	}
	return es.RaiseAndApply(g, &GovernmentFormed{})
}

// CollectTax records revenue. Whether the taxpayer could actually afford it
// is the wallet's concern; a positive collection always succeeds here.
func (g *Government) CollectTax(taxpayerID string, amount int64, category string) error {
	if err := g.requireFormed(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "tax amount must be positive, got %d", amount)
	}
	return es.RaiseAndApply(g, &TaxCollected{TaxpayerID: taxpayerID, Amount: amount, Category: category})
}

// PaySalary disburses from the treasury. Crediting the employee's wallet is
// handled by the treasury process manager.
func (g *Government) PaySalary(employeeWalletID string, amount int64) error {
	if err := g.requireFormed(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "salary must be positive, got %d", amount)
	}
	if employeeWalletID == "" {
		return Validation(CodeInvalidCommand, "employee wallet is required")
	}
	if amount > g.treasury {
		return BusinessRule(CodeInsufficientTreasury, "treasury %d insufficient to pay salary %d", g.treasury, amount)
	}
	return es.RaiseAndApply(g, &SalaryPaid{EmployeeWalletID: employeeWalletID, Amount: amount})
}

func (g *Government) AwardContract(contractorWalletID string, amount int64) error {
	if err := g.requireFormed(); err != nil {
		return err
	}
	if amount <= 0 {
		return Validation(CodeNonPositiveAmount, "contract amount must be positive, got %d", amount)
	}
	if contractorWalletID == "" {
		return Validation(CodeInvalidCommand, "contractor wallet is required")
	}
	if amount > g.treasury {
		return BusinessRule(CodeInsufficientTreasury, "treasury %d insufficient to award contract of %d", g.treasury, amount)
	}
	return es.RaiseAndApply(g, &ContractAwarded{ContractorWalletID: contractorWalletID, Amount: amount})
}

var _ es.Aggregate = (*Government)(nil)
