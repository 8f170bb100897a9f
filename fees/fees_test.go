package fees

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
	"github.com/tos-network/metagate/sysaction"
)

var (
	payer     = types.AccountID{0x11}
	collector = types.AccountID{0xc0}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func testSchedule() params.FeeSchedule {
	return params.FeeSchedule{BaseFee: u(100), ByteFee: u(2), RefTimeFee: u(1), ProofSizeFee: u(3)}
}

func TestLinearPolicy(t *testing.T) {
	p := NewLinearPolicy(testSchedule())
	info := sysaction.DispatchInfo{Weight: types.NewWeight(1000, 10), PaysFee: true}

	// 100 + 50*2 + 1000 + 30 + 7
	require.Equal(t, uint64(1237), p.ComputeFee(50, info, u(7)).Uint64())
	require.Equal(t, uint64(1230), p.ComputeFee(50, info, nil).Uint64())

	half := types.NewWeight(500, 10)
	post := sysaction.PostDispatchInfo{ActualWeight: &half, PaysFee: true}
	require.Equal(t, uint64(737), p.ComputeActualFee(50, info, post, u(7)).Uint64())

	// Reporting more than declared never raises the fee.
	over := types.NewWeight(5000, 100)
	post = sysaction.PostDispatchInfo{ActualWeight: &over, PaysFee: true}
	require.Equal(t, uint64(1237), p.ComputeActualFee(50, info, post, u(7)).Uint64())

	free := sysaction.DispatchInfo{Weight: info.Weight}
	require.Equal(t, uint64(7), p.ComputeFee(50, free, u(7)).Uint64())
}

func TestLinearPolicySaturates(t *testing.T) {
	p := NewLinearPolicy(params.FeeSchedule{BaseFee: new(uint256.Int).SetAllOne(), ByteFee: u(1), RefTimeFee: u(1), ProofSizeFee: u(1)})
	info := sysaction.DispatchInfo{Weight: types.MaxWeight, PaysFee: true}
	require.Equal(t, new(uint256.Int).SetAllOne(), p.ComputeFee(10, info, u(1)))
}

func newCoordinator(t *testing.T, withCollector bool) (*Coordinator, *balances.Memory) {
	t.Helper()
	ledger := balances.NewMemory(u(10))
	ledger.SetBalance(payer, u(10_000))
	var dst *types.AccountID
	if withCollector {
		dst = &collector
	}
	c := NewCoordinator(ledger, NewLinearPolicy(testSchedule()), NewCurrencyCharger(ledger, dst), u(500))
	return c, ledger
}

func TestChargeServiceFee(t *testing.T) {
	c, ledger := newCoordinator(t, false)
	fee, err := c.ChargeServiceFee(payer)
	require.NoError(t, err)
	require.Equal(t, uint64(500), fee.Uint64())
	require.Equal(t, uint64(9_500), ledger.Balance(payer).Uint64())

	ledger.SetBalance(payer, u(505))
	_, err = c.ChargeServiceFee(payer)
	require.True(t, errors.Is(err, ErrPayment), "have %v", err)
	require.Equal(t, uint64(505), ledger.Balance(payer).Uint64())
}

func TestEstimateAndCheck(t *testing.T) {
	c, ledger := newCoordinator(t, false)
	info := sysaction.DispatchInfo{Weight: types.NewWeight(1000, 10), PaysFee: true}

	fee, err := c.EstimateAndCheck(payer, 50, info, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1230), fee.Uint64())

	// Reducible balance keeps the existential deposit and frozen funds.
	ledger.SetBalance(payer, u(1239))
	_, err = c.EstimateAndCheck(payer, 50, info, nil, nil)
	require.True(t, errors.Is(err, ErrPayment), "have %v", err)

	ledger.SetBalance(payer, u(10_000))
	ledger.Freeze(payer, u(9_000))
	_, err = c.EstimateAndCheck(payer, 50, info, nil, u(1))
	require.True(t, errors.Is(err, ErrPayment), "have %v", err)
	require.Equal(t, uint64(10_000), ledger.Balance(payer).Uint64(), "check must not debit")
}

func TestWithdrawAndRefund(t *testing.T) {
	c, ledger := newCoordinator(t, true)
	info := sysaction.DispatchInfo{Weight: types.NewWeight(1000, 10), PaysFee: true}
	fee := c.Estimate(50, info, u(7))

	liq, err := c.Withdraw(payer, fee, u(7))
	require.NoError(t, err)
	require.Equal(t, uint64(10_000-1237), ledger.Balance(payer).Uint64())

	half := types.NewWeight(500, 10)
	actual, err := c.Correct(payer, 50, info, sysaction.PostDispatchInfo{ActualWeight: &half, PaysFee: true}, u(7), liq)
	require.NoError(t, err)
	require.Equal(t, uint64(737), actual.Uint64())
	require.Equal(t, uint64(10_000-737), ledger.Balance(payer).Uint64())
	require.Equal(t, uint64(737), ledger.Balance(collector).Uint64())
}

func TestCorrectCollectsShortfall(t *testing.T) {
	ledger := balances.NewMemory(nil)
	ledger.SetBalance(payer, u(1_000))
	charger := NewCurrencyCharger(ledger, nil)

	liq, err := charger.WithdrawFee(payer, u(100), nil)
	require.NoError(t, err)
	require.NoError(t, charger.CorrectAndDepositFee(payer, u(150), nil, liq))
	require.Equal(t, uint64(850), ledger.Balance(payer).Uint64())

	err = charger.CorrectAndDepositFee(payer, u(5_000), nil, Liquidity{Who: payer})
	require.True(t, errors.Is(err, ErrPayment), "have %v", err)
}

func TestWithdrawZeroFee(t *testing.T) {
	c, ledger := newCoordinator(t, false)
	liq, err := c.Withdraw(payer, new(uint256.Int), nil)
	require.NoError(t, err)
	require.Nil(t, liq.Paid)
	require.True(t, liq.Amount().IsZero())
	require.Equal(t, uint64(10_000), ledger.Balance(payer).Uint64())
}
