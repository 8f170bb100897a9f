package core

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
)

var testLimits = params.BlockLimits{
	MaxRefTime:   params.DefaultMaxRefTime,
	MaxProofSize: params.DefaultMaxProofSize,
	MaxLength:    params.DefaultMaxLength,
}

func TestPriorityFormula(t *testing.T) {
	tests := []struct {
		name   string
		weight types.Weight
		length uint32
		tip    *uint256.Int
		want   uint64
	}{
		// Length is the scarce resource: 5MiB / 20 = 262144.
		{"no tip", types.NewWeight(1_000_000, 0), 20, nil, 262144},
		{"tip one", types.NewWeight(1_000_000, 0), 20, uint256.NewInt(1), 2 * 262144},
		// Weight is scarce: 2e12 / 1e9 = 2000.
		{"heavy", types.NewWeight(1_000_000_000, 1), 20, nil, 2000},
		// Zero weight and length are clamped to one.
		{"empty", types.Weight{}, 0, nil, params.DefaultMaxLength},
		// Weight above the block is clamped to the block.
		{"oversized", types.MaxWeight, 20, uint256.NewInt(9), 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if have := Priority(testLimits, tc.weight, tc.length, tc.tip); have != tc.want {
				t.Fatalf("priority mismatch: have %d want %d", have, tc.want)
			}
		})
	}
}

func TestPriorityStrictlyIncreasesWithTip(t *testing.T) {
	weight := types.NewWeight(params.RemarkRefTime, 0)
	prev := Priority(testLimits, weight, 32, nil)
	for _, tip := range []uint64{1, 2, 10, 1_000, 1_000_000} {
		have := Priority(testLimits, weight, 32, uint256.NewInt(tip))
		if have <= prev {
			t.Fatalf("tip %d: priority %d not above %d", tip, have, prev)
		}
		prev = have
	}
}

func TestPrioritySaturates(t *testing.T) {
	huge := new(uint256.Int).SetAllOne()
	if have := Priority(testLimits, types.NewWeight(1, 1), 1, huge); have != math.MaxUint64 {
		t.Fatalf("expected saturation, have %d", have)
	}
	big := uint256.NewInt(math.MaxUint64)
	if have := Priority(testLimits, types.NewWeight(1, 1), 1, big); have != math.MaxUint64 {
		t.Fatalf("expected saturation, have %d", have)
	}
}
