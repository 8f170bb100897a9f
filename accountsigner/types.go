// Package accountsigner recovers the secp256k1 key behind an EVM-style
// recoverable signature and binds it to a local account identifier.
package accountsigner

import (
	"errors"

	"github.com/tos-network/metagate/core/types"
)

const (
	// SignatureLength is r || s || v.
	SignatureLength = types.SignatureLength
	// CompressedPubkeyLength is the SEC1 compressed point size.
	CompressedPubkeyLength = 33
)

var (
	ErrInvalidSignature   = errors.New("accountsigner: invalid signature")
	ErrInvalidRecoveryID  = errors.New("accountsigner: recovery id out of range")
	ErrMalformedSignature = errors.New("accountsigner: malformed r/s components")
	ErrRecoveryFailed     = errors.New("accountsigner: public key recovery failed")
	ErrAccountMismatch    = errors.New("accountsigner: recovered account does not match claimed caller")
	ErrInvalidPubkey      = errors.New("accountsigner: invalid public key")
)
