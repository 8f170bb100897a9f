package types

import (
	"fmt"
	"math"
)

// Weight is the two dimensional execution cost of an action: the reference
// execution time and the size of the proof it contributes to a block.
type Weight struct {
	RefTime   uint64 `json:"refTime"`
	ProofSize uint64 `json:"proofSize"`
}

// NewWeight is a shorthand for Weight{refTime, proofSize}.
func NewWeight(refTime, proofSize uint64) Weight {
	return Weight{RefTime: refTime, ProofSize: proofSize}
}

// MaxWeight is the largest representable weight.
var MaxWeight = Weight{RefTime: math.MaxUint64, ProofSize: math.MaxUint64}

func (w Weight) IsZero() bool { return w.RefTime == 0 && w.ProofSize == 0 }

// AllLTE reports whether both components of w are at most the ones of o.
func (w Weight) AllLTE(o Weight) bool {
	return w.RefTime <= o.RefTime && w.ProofSize <= o.ProofSize
}

// Min returns the component-wise minimum.
func (w Weight) Min(o Weight) Weight {
	return Weight{RefTime: min(w.RefTime, o.RefTime), ProofSize: min(w.ProofSize, o.ProofSize)}
}

// Max returns the component-wise maximum.
func (w Weight) Max(o Weight) Weight {
	return Weight{RefTime: max(w.RefTime, o.RefTime), ProofSize: max(w.ProofSize, o.ProofSize)}
}

// SaturatingAdd adds component-wise, clamping at math.MaxUint64.
func (w Weight) SaturatingAdd(o Weight) Weight {
	return Weight{RefTime: saturatingAdd(w.RefTime, o.RefTime), ProofSize: saturatingAdd(w.ProofSize, o.ProofSize)}
}

// CheckedDivPerComponent divides each component of w by the matching one of
// o and returns the smaller quotient. Components where o is zero are skipped;
// ok is false when both are zero.
func (w Weight) CheckedDivPerComponent(o Weight) (uint64, bool) {
	var (
		quotient uint64 = math.MaxUint64
		divided  bool
	)
	if o.RefTime != 0 {
		quotient, divided = w.RefTime/o.RefTime, true
	}
	if o.ProofSize != 0 {
		quotient, divided = min(quotient, w.ProofSize/o.ProofSize), true
	}
	if !divided {
		return 0, false
	}
	return quotient, true
}

func (w Weight) String() string {
	return fmt.Sprintf("{ref_time: %d, proof_size: %d}", w.RefTime, w.ProofSize)
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
