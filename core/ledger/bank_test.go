package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MyndPhreak/gamerp/core/ledger"
)

func openBank(t *testing.T, bps int64) *ledger.Bank {
	t.Helper()
	b := &ledger.Bank{}
	require.NoError(t, b.Open("first national", bps))
	return b
}

func TestBank_OpenDefaults(t *testing.T) {
	b := openBank(t, 0)
	require.EqualValues(t, ledger.DefaultReserveRequirementBps, b.ReserveRequirementBps())
	require.True(t, b.IsOpen())
}

func TestBank_OpenInvalidRequirement(t *testing.T) {
	b := &ledger.Bank{}
	requireCode(t, b.Open("x", -1), ledger.KindValidation, ledger.CodeInvalidCommand)
	requireCode(t, b.Open("x", 10001), ledger.KindValidation, ledger.CodeInvalidCommand)
}

func TestBank_DepositAndWithdraw(t *testing.T) {
	b := openBank(t, 1000)

	require.NoError(t, b.AcceptDeposit("wallet-alice", 1000))
	require.NoError(t, b.ProcessWithdrawal("wallet-alice", 400))

	require.EqualValues(t, 600, b.Reserves())
	require.EqualValues(t, 600, b.TotalDeposits())
}

func TestBank_WithdrawalBeyondReservesFailsBank(t *testing.T) {
	b := openBank(t, 1000)
	require.NoError(t, b.AcceptDeposit("wallet-alice", 1000))
	require.NoError(t, b.IssueLoan("wallet-bob", 800))
	// reserves are now 200 against 1000 in deposits

	err := b.ProcessWithdrawal("wallet-alice", 500)
	requireCode(t, err, ledger.KindBusinessRule, ledger.CodeInsufficientReserves)

	// the failure itself is recorded as an event
	require.True(t, b.IsFailed())
	evs := b.Uncommitted()
	_, ok := evs[len(evs)-1].(*ledger.BankFailed)
	require.True(t, ok)

	// a failed bank accepts no further business
	requireCode(t, b.AcceptDeposit("wallet-carol", 10), ledger.KindBusinessRule, ledger.CodeBankInsolvent)
	requireCode(t, b.IssueLoan("wallet-carol", 10), ledger.KindBusinessRule, ledger.CodeBankInsolvent)
}

func TestBank_LoanRespectsReserveRatio(t *testing.T) {
	// 10% requirement: 1000 in deposits needs 100 held back
	b := openBank(t, 1000)
	require.NoError(t, b.AcceptDeposit("wallet-alice", 1000))

	// 901 would leave 99 in reserve
	requireCode(t, b.IssueLoan("wallet-bob", 901), ledger.KindBusinessRule, ledger.CodeReserveRatioBreach)

	// 900 leaves exactly the required 100
	require.NoError(t, b.IssueLoan("wallet-bob", 900))
	require.EqualValues(t, 100, b.Reserves())
	require.EqualValues(t, 900, b.LoansOutstanding())
}

func TestBank_LoanBeyondReserves(t *testing.T) {
	b := openBank(t, 1000)
	require.NoError(t, b.AcceptDeposit("wallet-alice", 100))

	requireCode(t, b.IssueLoan("wallet-bob", 200), ledger.KindBusinessRule, ledger.CodeInsufficientReserves)
}

func TestBank_RepayLoan(t *testing.T) {
	b := openBank(t, 1000)
	require.NoError(t, b.AcceptDeposit("wallet-alice", 1000))
	require.NoError(t, b.IssueLoan("wallet-bob", 500))

	require.NoError(t, b.RepayLoan("wallet-bob", 300))
	require.EqualValues(t, 200, b.LoansOutstanding())
	require.EqualValues(t, 800, b.Reserves())

	requireCode(t, b.RepayLoan("wallet-bob", 300), ledger.KindBusinessRule, ledger.CodeExcessRepayment)
}

func TestBank_UnopenedNotFound(t *testing.T) {
	b := &ledger.Bank{}
	requireCode(t, b.AcceptDeposit("wallet-alice", 10), ledger.KindNotFound, ledger.CodeBankNotFound)
	requireCode(t, b.ProcessWithdrawal("wallet-alice", 10), ledger.KindNotFound, ledger.CodeBankNotFound)
	requireCode(t, b.IssueLoan("wallet-alice", 10), ledger.KindNotFound, ledger.CodeBankNotFound)
}
