package params

// These are the multipliers for ledger denominations.
// Example: To get the plank value of an amount in 'units', use
//
//	new(uint256.Int).Mul(value, uint256.NewInt(params.Unit))
const (
	Plank     = 1
	MilliUnit = 1e9
	Unit      = 1e12
)
