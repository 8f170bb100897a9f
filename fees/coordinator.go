package fees

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/sysaction"
)

// Coordinator sequences the fee steps of admission and execution: the flat
// service fee, the estimate and balance check, the withdrawal and the final
// correction.
type Coordinator struct {
	ledger     balances.Ledger
	policy     Policy
	charger    Charger
	serviceFee *uint256.Int
}

// NewCoordinator wires the fee collaborators together.
func NewCoordinator(ledger balances.Ledger, policy Policy, charger Charger, serviceFee *uint256.Int) *Coordinator {
	fee := new(uint256.Int)
	if serviceFee != nil {
		fee.Set(serviceFee)
	}
	return &Coordinator{ledger: ledger, policy: policy, charger: charger, serviceFee: fee}
}

// ServiceFee returns the flat admission fee.
func (c *Coordinator) ServiceFee() *uint256.Int { return new(uint256.Int).Set(c.serviceFee) }

// ChargeServiceFee withdraws the flat admission fee from who. The funds
// leave circulation.
func (c *Coordinator) ChargeServiceFee(who types.AccountID) (*uint256.Int, error) {
	if err := c.ledger.Withdraw(who, c.serviceFee, balances.ReasonTransactionPayment, balances.KeepAlive); err != nil {
		return nil, fmt.Errorf("%w: service fee %s from %s: %v", ErrPayment, c.serviceFee.Dec(), who.Hex(), err)
	}
	return c.ServiceFee(), nil
}

// Estimate returns the fee the policy charges up front.
func (c *Coordinator) Estimate(length uint32, info sysaction.DispatchInfo, tip *uint256.Int) *uint256.Int {
	return c.policy.ComputeFee(length, info, tip)
}

// EstimateAndCheck estimates the fee and verifies who can pay it on top of
// reserve without dropping below the existential deposit or touching frozen
// funds. reserve is zero except in dry-run admission where the service fee
// was not actually withdrawn.
func (c *Coordinator) EstimateAndCheck(who types.AccountID, length uint32, info sysaction.DispatchInfo, tip, reserve *uint256.Int) (*uint256.Int, error) {
	fee := c.Estimate(length, info, tip)
	need := addSat(fee, reserve)
	usable := c.ledger.ReducibleBalance(who, balances.Protect, balances.Polite)
	if usable.Lt(need) {
		return nil, fmt.Errorf("%w: %s can spend %s, needs %s", ErrPayment, who.Hex(), usable.Dec(), need.Dec())
	}
	return fee, nil
}

// Withdraw takes the estimated fee ahead of dispatch.
func (c *Coordinator) Withdraw(who types.AccountID, fee, tip *uint256.Int) (Liquidity, error) {
	return c.charger.WithdrawFee(who, fee, tip)
}

// Correct computes the actual fee from post and settles it against what was
// withdrawn. It returns the actual fee.
func (c *Coordinator) Correct(who types.AccountID, length uint32, info sysaction.DispatchInfo, post sysaction.PostDispatchInfo, tip *uint256.Int, already Liquidity) (*uint256.Int, error) {
	actual := c.policy.ComputeActualFee(length, info, post, tip)
	if err := c.charger.CorrectAndDepositFee(who, actual, tip, already); err != nil {
		return nil, err
	}
	return actual, nil
}
