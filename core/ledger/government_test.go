package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MyndPhreak/gamerp/core/ledger"
)

func formedGovernment(t *testing.T) *ledger.Government {
	t.Helper()
	g := &ledger.Government{}
	require.NoError(t, g.Form())
	return g
}

func TestGovernment_Form(t *testing.T) {
	g := formedGovernment(t)
	require.True(t, g.IsFormed())
	requireCode(t, g.Form(), ledger.KindBusinessRule, ledger.CodeAlreadyExists)
}

func TestGovernment_CollectTax(t *testing.T) {
	g := formedGovernment(t)

	require.NoError(t, g.CollectTax("wallet-alice", 500, "income"))
	require.NoError(t, g.CollectTax("wallet-bob", 250, "sales"))

	require.EqualValues(t, 750, g.Treasury())
	require.EqualValues(t, 750, g.LifetimeRevenue())
}

func TestGovernment_PaySalaryWithinTreasury(t *testing.T) {
	g := formedGovernment(t)
	require.NoError(t, g.CollectTax("wallet-alice", 500, ""))

	require.NoError(t, g.PaySalary("wallet-bob", 300))
	require.EqualValues(t, 200, g.Treasury())
	// spending never reduces lifetime revenue
	require.EqualValues(t, 500, g.LifetimeRevenue())

	requireCode(t, g.PaySalary("wallet-bob", 201), ledger.KindBusinessRule, ledger.CodeInsufficientTreasury)
}

func TestGovernment_AwardContract(t *testing.T) {
	g := formedGovernment(t)
	require.NoError(t, g.CollectTax("wallet-alice", 1000, ""))

	require.NoError(t, g.AwardContract("wallet-builder", 1000))
	require.EqualValues(t, 0, g.Treasury())

	requireCode(t, g.AwardContract("wallet-builder", 1), ledger.KindBusinessRule, ledger.CodeInsufficientTreasury)
}

func TestGovernment_RequiresFormation(t *testing.T) {
	g := &ledger.Government{}
	requireCode(t, g.CollectTax("wallet-alice", 10, ""), ledger.KindNotFound, ledger.CodeGovernmentNotFound)
	requireCode(t, g.PaySalary("wallet-alice", 10), ledger.KindNotFound, ledger.CodeGovernmentNotFound)
	requireCode(t, g.AwardContract("wallet-alice", 10), ledger.KindNotFound, ledger.CodeGovernmentNotFound)
}

func TestGovernment_NonPositiveAmounts(t *testing.T) {
	g := formedGovernment(t)
	requireCode(t, g.CollectTax("wallet-alice", 0, ""), ledger.KindValidation, ledger.CodeNonPositiveAmount)
	requireCode(t, g.PaySalary("wallet-alice", -1), ledger.KindValidation, ledger.CodeNonPositiveAmount)
	requireCode(t, g.AwardContract("wallet-alice", 0), ledger.KindValidation, ledger.CodeNonPositiveAmount)
}
