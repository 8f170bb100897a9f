package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
)

// AdmissionMode selects whether the admission check commits its side effects.
type AdmissionMode string

const (
	// AdmissionCommitOnCheck advances the nonce counter and withdraws the
	// service fee while validating. A discarded candidate keeps both effects.
	AdmissionCommitOnCheck AdmissionMode = "commit-on-check"
	// AdmissionDryRun validates against current state without mutating it.
	AdmissionDryRun AdmissionMode = "dry-run"
)

var (
	ErrMissingDomainName  = errors.New("params: eip712 name must not be empty")
	ErrMissingChainID     = errors.New("params: eip712 chain id must be set")
	ErrMissingServiceFee  = errors.New("params: service fee must be set")
	ErrInvalidBlockLimits = errors.New("params: block limits must be non-zero")
	ErrInvalidAdmission   = errors.New("params: unknown admission mode")
	ErrEmptyAllowList     = errors.New("params: allowed actions must name at least one action")
	ErrInvalidSS58Prefix  = errors.New("params: ss58 prefix must be below 16384")
)

// EIP712Config is the typed-data domain the off-chain signer commits to.
type EIP712Config struct {
	Name              string
	Version           string
	ChainID           *uint256.Int
	VerifyingContract common.Address
	Salt              *common.Hash `toml:",omitempty"`
}

// BlockLimits is the capacity of one scheduling unit. It is consulted only
// by the priority scorer.
type BlockLimits struct {
	MaxRefTime   uint64
	MaxProofSize uint64
	MaxLength    uint64
}

// MaxBlockWeight returns the weight limit of one scheduling unit.
func (l BlockLimits) MaxBlockWeight() types.Weight {
	return types.NewWeight(l.MaxRefTime, l.MaxProofSize)
}

// MaxBlockLength returns the byte length limit of one scheduling unit.
func (l BlockLimits) MaxBlockLength() uint64 { return l.MaxLength }

// FeeSchedule parameterises the linear fee policy.
type FeeSchedule struct {
	BaseFee      *uint256.Int // Flat fee of every dispatch.
	ByteFee      *uint256.Int // Per encoded byte of the action.
	RefTimeFee   *uint256.Int // Per unit of reference time.
	ProofSizeFee *uint256.Int // Per byte of proof size.
}

// Config is the process-wide configuration of the gateway. It is fixed at
// startup and never mutated afterwards.
type Config struct {
	EIP712     EIP712Config
	SS58Prefix uint16

	ServiceFee         *uint256.Int
	ExistentialDeposit *uint256.Int
	FeeCollector       *types.AccountID `toml:",omitempty"`

	// AllowedActions are the action kinds the caller-scoped origin may
	// dispatch. It must name at least one; a list that filters everything
	// would still charge callers full fees.
	AllowedActions []string
	Block          BlockLimits
	Fees           FeeSchedule

	Admission       AdmissionMode
	SignerCacheSize int
}

// DefaultConfig contains sane defaults for a local development gateway.
var DefaultConfig = Config{
	EIP712: EIP712Config{
		Name:              "Substrate",
		Version:           "1",
		ChainID:           uint256.NewInt(1),
		VerifyingContract: common.HexToAddress("0x0000000000000000000000000000000000000000"),
	},
	SS58Prefix:         types.DefaultSS58Prefix,
	ServiceFee:         uint256.NewInt(MilliUnit),
	ExistentialDeposit: uint256.NewInt(MilliUnit),
	AllowedActions:     []string{"SYSTEM_REMARK", "SYSTEM_REMARK_WITH_EVENT", "BALANCES_TRANSFER"},
	Block: BlockLimits{
		MaxRefTime:   DefaultMaxRefTime,
		MaxProofSize: DefaultMaxProofSize,
		MaxLength:    DefaultMaxLength,
	},
	Fees: FeeSchedule{
		BaseFee:      uint256.NewInt(MilliUnit / 10),
		ByteFee:      uint256.NewInt(1_000_000),
		RefTimeFee:   uint256.NewInt(1),
		ProofSizeFee: uint256.NewInt(10),
	},
	Admission:       AdmissionCommitOnCheck,
	SignerCacheSize: DefaultSignerCacheSize,
}

// Copy returns a deep copy of c so callers can tweak defaults safely.
func (c *Config) Copy() *Config {
	cpy := *c
	cpy.EIP712.ChainID = cloneInt(c.EIP712.ChainID)
	if c.EIP712.Salt != nil {
		salt := *c.EIP712.Salt
		cpy.EIP712.Salt = &salt
	}
	cpy.ServiceFee = cloneInt(c.ServiceFee)
	cpy.ExistentialDeposit = cloneInt(c.ExistentialDeposit)
	if c.FeeCollector != nil {
		collector := *c.FeeCollector
		cpy.FeeCollector = &collector
	}
	cpy.AllowedActions = append([]string(nil), c.AllowedActions...)
	cpy.Fees = FeeSchedule{
		BaseFee:      cloneInt(c.Fees.BaseFee),
		ByteFee:      cloneInt(c.Fees.ByteFee),
		RefTimeFee:   cloneInt(c.Fees.RefTimeFee),
		ProofSizeFee: cloneInt(c.Fees.ProofSizeFee),
	}
	return &cpy
}

// CheckConfig validates the configuration and fills zero values that have
// a safe default.
func (c *Config) CheckConfig() error {
	if strings.TrimSpace(c.EIP712.Name) == "" {
		return ErrMissingDomainName
	}
	if c.EIP712.ChainID == nil {
		return ErrMissingChainID
	}
	if c.ServiceFee == nil {
		return ErrMissingServiceFee
	}
	if c.SS58Prefix >= 16384 {
		return fmt.Errorf("%w: %d", ErrInvalidSS58Prefix, c.SS58Prefix)
	}
	if c.Block.MaxRefTime == 0 || c.Block.MaxProofSize == 0 || c.Block.MaxLength == 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidBlockLimits, c.Block)
	}
	allowed := 0
	for _, kind := range c.AllowedActions {
		if strings.TrimSpace(kind) != "" {
			allowed++
		}
	}
	if allowed == 0 {
		return ErrEmptyAllowList
	}
	switch c.Admission {
	case "":
		c.Admission = AdmissionCommitOnCheck
	case AdmissionCommitOnCheck, AdmissionDryRun:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAdmission, c.Admission)
	}
	if c.ExistentialDeposit == nil {
		c.ExistentialDeposit = new(uint256.Int)
	}
	if c.SignerCacheSize <= 0 {
		c.SignerCacheSize = DefaultSignerCacheSize
	}
	zeroIfNil(&c.Fees.BaseFee)
	zeroIfNil(&c.Fees.ByteFee)
	zeroIfNil(&c.Fees.RefTimeFee)
	zeroIfNil(&c.Fees.ProofSizeFee)
	return nil
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return new(uint256.Int).Set(v)
}

func zeroIfNil(v **uint256.Int) {
	if *v == nil {
		*v = new(uint256.Int)
	}
}
