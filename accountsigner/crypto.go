package accountsigner

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/metagate/core/types"
	"golang.org/x/crypto/blake2b"
)

// normalizeRecoveryID maps both the raw {0,1} and the EVM {27,28} encodings
// of v to {0,1}.
func normalizeRecoveryID(v byte) (byte, error) {
	if v > 26 {
		v -= 27
	}
	if v > 1 {
		return 0, fmt.Errorf("%w: %w: v=%d", ErrInvalidSignature, ErrInvalidRecoveryID, v)
	}
	return v, nil
}

// checkRS rejects r/s values that are zero, not below the group order, or a
// high-s malleated form.
func checkRS(sig []byte) error {
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return fmt.Errorf("%w: %w: r out of range", ErrInvalidSignature, ErrMalformedSignature)
	}
	if overflow := s.SetByteSlice(sig[32:64]); overflow || s.IsZero() {
		return fmt.Errorf("%w: %w: s out of range", ErrInvalidSignature, ErrMalformedSignature)
	}
	if s.IsOverHalfOrder() {
		return fmt.Errorf("%w: %w: s is not normalized", ErrInvalidSignature, ErrMalformedSignature)
	}
	return nil
}

// RecoverPublicKey recovers the key that produced sig over digest. sig is the
// 65 byte [R || S || V] form produced by EVM wallets. It is pure and safe to
// call any number of times for the same input.
func RecoverPublicKey(sig [SignatureLength]byte, digest common.Hash) (*btcec.PublicKey, error) {
	v, err := normalizeRecoveryID(sig[64])
	if err != nil {
		return nil, err
	}
	if err := checkRS(sig[:64]); err != nil {
		return nil, err
	}
	// btcec expects the compact layout [27 + V || R || S].
	compact := make([]byte, SignatureLength)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidSignature, ErrRecoveryFailed, err)
	}
	return pub, nil
}

// CompressPubkey returns the 33 byte SEC1 encoding of pub.
func CompressPubkey(pub *btcec.PublicKey) []byte {
	return pub.SerializeCompressed()
}

// ParsePubkey accepts a compressed or uncompressed SEC1 public key.
func ParsePubkey(raw []byte) (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	return pub, nil
}

// AccountFromPubkey derives the local account id of pub:
// blake2b-256 of the compressed encoding.
func AccountFromPubkey(pub *btcec.PublicKey) (types.AccountID, error) {
	if pub == nil {
		return types.AccountID{}, ErrInvalidPubkey
	}
	digest := blake2b.Sum256(CompressPubkey(pub))
	return types.BytesToAccountID(digest[:])
}

// VerifyClaim checks that pub binds to claimed.
func VerifyClaim(claimed types.AccountID, pub *btcec.PublicKey) error {
	derived, err := AccountFromPubkey(pub)
	if err != nil {
		return err
	}
	if derived != claimed {
		return fmt.Errorf("%w: claimed %s recovered %s", ErrAccountMismatch, claimed.Hex(), derived.Hex())
	}
	return nil
}
