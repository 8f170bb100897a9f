package core

import (
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
)

// BlockCapacity describes one scheduling unit. params.BlockLimits
// implements it.
type BlockCapacity interface {
	MaxBlockWeight() types.Weight
	MaxBlockLength() uint64
}

var maxPriority = uint256.NewInt(^uint64(0))

// Priority scores a candidate by the tip it pays per unit of the scarcer
// block resource: (tip+1) * min(maxWeight/weight, maxLength/length), with
// weight and length clamped into the block limits. Candidates without a tip
// still order by size, smaller first.
func Priority(capacity BlockCapacity, weight types.Weight, length uint32, tip *uint256.Int) uint64 {
	maxWeight := capacity.MaxBlockWeight()
	maxLength := capacity.MaxBlockLength()

	// Both are divisors below, so keep them non-zero.
	boundedWeight := weight.Max(types.NewWeight(1, 1)).Min(maxWeight)
	boundedLength := min(max(uint64(length), 1), max(maxLength, 1))

	perWeight, ok := maxWeight.CheckedDivPerComponent(boundedWeight)
	if !ok {
		perWeight = 1
	}
	perLength := maxLength / boundedLength
	maxTx := min(perWeight, perLength)

	scaled := new(uint256.Int).SetUint64(1)
	if tip != nil {
		if _, overflow := scaled.AddOverflow(scaled, tip); overflow {
			return maxPriority.Uint64()
		}
	}
	if _, overflow := scaled.MulOverflow(scaled, uint256.NewInt(maxTx)); overflow || scaled.Gt(maxPriority) {
		return maxPriority.Uint64()
	}
	return scaled.Uint64()
}
