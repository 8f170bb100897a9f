// Package eip712 computes the typed-data digests an EVM wallet signs for a
// SubstrateCall meta transaction.
//
// The encoding follows EIP-712: every member is a 32 byte word, dynamic
// members (string, bytes) are replaced by their keccak256 hash, and the final
// digest is keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
// Any deviation from what a wallet computes silently invalidates every
// signature, so the functions here have no error path.
package eip712

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/params"
)

const (
	domainType         = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	domainTypeWithSalt = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)"
)

var (
	domainTypeHash         = crypto.Keccak256Hash([]byte(domainType))
	domainTypeWithSaltHash = crypto.Keccak256Hash([]byte(domainTypeWithSalt))
	substrateCallTypeHash  = crypto.Keccak256Hash([]byte(params.SubstrateCallType))

	typedDataPrefix = []byte("\x19\x01")
)

// Domain is the EIP-712 domain of the gateway.
type Domain struct {
	Name              string
	Version           string
	ChainID           *uint256.Int
	VerifyingContract common.Address
	Salt              *common.Hash
}

// DomainFromConfig builds the domain from the process configuration.
func DomainFromConfig(cfg params.EIP712Config) Domain {
	d := Domain{
		Name:              cfg.Name,
		Version:           cfg.Version,
		ChainID:           new(uint256.Int),
		VerifyingContract: cfg.VerifyingContract,
	}
	if cfg.ChainID != nil {
		d.ChainID.Set(cfg.ChainID)
	}
	if cfg.Salt != nil {
		salt := *cfg.Salt
		d.Salt = &salt
	}
	return d
}

func uintWord(v *uint256.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	word := v.Bytes32()
	return word[:]
}

// DomainSeparator returns hashStruct(domain).
func DomainSeparator(d Domain) common.Hash {
	typeHash := domainTypeHash
	if d.Salt != nil {
		typeHash = domainTypeWithSaltHash
	}
	words := make([]byte, 0, 6*32)
	words = append(words, typeHash[:]...)
	words = append(words, crypto.Keccak256([]byte(d.Name))...)
	words = append(words, crypto.Keccak256([]byte(d.Version))...)
	words = append(words, uintWord(d.ChainID)...)
	words = append(words, common.LeftPadBytes(d.VerifyingContract[:], 32)...)
	if d.Salt != nil {
		words = append(words, d.Salt[:]...)
	}
	return crypto.Keccak256Hash(words)
}

// MessageHash returns hashStruct(SubstrateCall{who, callData, nonce}). who is
// the caller's canonical string form.
func MessageHash(who string, callData []byte, nonce uint64) common.Hash {
	words := make([]byte, 0, 4*32)
	words = append(words, substrateCallTypeHash[:]...)
	words = append(words, crypto.Keccak256([]byte(who))...)
	words = append(words, crypto.Keccak256(callData)...)
	words = append(words, uintWord(uint256.NewInt(nonce))...)
	return crypto.Keccak256Hash(words)
}

// TypedDataHash joins a domain separator and a struct hash into the digest
// that is actually signed.
func TypedDataHash(domainSeparator, messageHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(typedDataPrefix, domainSeparator[:], messageHash[:])
}

// SigningDigest is TypedDataHash(DomainSeparator(d), MessageHash(...)).
func SigningDigest(d Domain, who string, callData []byte, nonce uint64) common.Hash {
	return TypedDataHash(DomainSeparator(d), MessageHash(who, callData, nonce))
}

// Hasher caches the separator of a fixed domain.
type Hasher struct {
	domain    Domain
	separator common.Hash
}

// NewHasher precomputes the separator of d.
func NewHasher(d Domain) *Hasher {
	return &Hasher{domain: d, separator: DomainSeparator(d)}
}

// Domain returns the domain the hasher was built for.
func (h *Hasher) Domain() Domain { return h.domain }

// DomainSeparator returns the cached separator.
func (h *Hasher) DomainSeparator() common.Hash { return h.separator }

// Digest returns the signing digest of a SubstrateCall message.
func (h *Hasher) Digest(who string, callData []byte, nonce uint64) common.Hash {
	return TypedDataHash(h.separator, MessageHash(who, callData, nonce))
}
