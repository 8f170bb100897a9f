package params

const (
	// Longevity is the number of scheduling rounds an admitted but not yet
	// executed meta transaction stays eligible before it must be re-validated.
	Longevity uint64 = 5

	// TagPrefix namespaces the provides/requires ordering tags.
	TagPrefix = "AccountAbstraction"

	// SubstrateCallType is the EIP-712 primary type signed by the caller.
	SubstrateCallType = "SubstrateCall(string who,bytes callData,uint64 nonce)"

	DefaultSignerCacheSize = 4096 // Recovered signer cache entries.

	DefaultMaxRefTime   uint64 = 2_000_000_000_000 // 2s of reference execution time.
	DefaultMaxProofSize uint64 = 5 * 1024 * 1024
	DefaultMaxLength    uint64 = 5 * 1024 * 1024 // Bytes per scheduling unit.

	RemarkRefTime         uint64 = 1_000_000 // Base weight of a no-op remark.
	RemarkRefTimePerByte  uint64 = 1_000
	TransferRefTime       uint64 = 50_000_000
	TransferProofSize     uint64 = 3_593
	RemarkEventRefTimeAdd uint64 = 2_000_000 // Extra cost of emitting the remark event.
)
