// Package fees estimates, withdraws and corrects the fees of meta
// transactions.
package fees

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
	"github.com/tos-network/metagate/sysaction"
)

// ErrPayment is the class of every fee failure.
var ErrPayment = errors.New("fees: payment failed")

// Policy computes transaction fees.
type Policy interface {
	// ComputeFee is the fee charged up front for a call of encoded length
	// length with the declared info.
	ComputeFee(length uint32, info sysaction.DispatchInfo, tip *uint256.Int) *uint256.Int
	// ComputeActualFee is the fee owed once dispatch reported post.
	ComputeActualFee(length uint32, info sysaction.DispatchInfo, post sysaction.PostDispatchInfo, tip *uint256.Int) *uint256.Int
}

// LinearPolicy charges
//
//	base + length*byteFee + refTime*refTimeFee + proofSize*proofSizeFee + tip
//
// with saturating arithmetic. Only the tip is charged when the call does not
// pay fees.
type LinearPolicy struct {
	schedule params.FeeSchedule
}

// NewLinearPolicy creates a policy from the configured schedule.
func NewLinearPolicy(schedule params.FeeSchedule) *LinearPolicy {
	return &LinearPolicy{schedule: schedule}
}

func (p *LinearPolicy) ComputeFee(length uint32, info sysaction.DispatchInfo, tip *uint256.Int) *uint256.Int {
	return p.compute(length, info.Weight, info.PaysFee, tip)
}

func (p *LinearPolicy) ComputeActualFee(length uint32, info sysaction.DispatchInfo, post sysaction.PostDispatchInfo, tip *uint256.Int) *uint256.Int {
	return p.compute(length, post.CalcActualWeight(info), post.PaysFeeFor(info), tip)
}

// WeightToFee converts weight into its fee.
func (p *LinearPolicy) WeightToFee(w types.Weight) *uint256.Int {
	ref := mulSat(uint256.NewInt(w.RefTime), p.schedule.RefTimeFee)
	proof := mulSat(uint256.NewInt(w.ProofSize), p.schedule.ProofSizeFee)
	return addSat(ref, proof)
}

// LengthToFee converts an encoded length into its fee.
func (p *LinearPolicy) LengthToFee(length uint32) *uint256.Int {
	return mulSat(uint256.NewInt(uint64(length)), p.schedule.ByteFee)
}

func (p *LinearPolicy) compute(length uint32, weight types.Weight, paysFee bool, tip *uint256.Int) *uint256.Int {
	fee := new(uint256.Int)
	if paysFee {
		fee = addSat(fee, p.schedule.BaseFee)
		fee = addSat(fee, p.LengthToFee(length))
		fee = addSat(fee, p.WeightToFee(weight))
	}
	return addSat(fee, tip)
}

var maxU256 = new(uint256.Int).SetAllOne()

// addSat returns a+b, or the largest value on overflow. nil reads as zero.
func addSat(a, b *uint256.Int) *uint256.Int {
	out := new(uint256.Int)
	if a != nil {
		out.Set(a)
	}
	if b == nil {
		return out
	}
	if _, overflow := out.AddOverflow(out, b); overflow {
		return out.Set(maxU256)
	}
	return out
}

// mulSat returns a*b, or the largest value on overflow. nil reads as zero.
func mulSat(a, b *uint256.Int) *uint256.Int {
	if a == nil || b == nil {
		return new(uint256.Int)
	}
	out, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return out.Set(maxU256)
	}
	return out
}
