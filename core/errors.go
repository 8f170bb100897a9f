package core

import (
	"errors"

	"github.com/tos-network/metagate/accountsigner"
	"github.com/tos-network/metagate/fees"
	"github.com/tos-network/metagate/noncestore"
)

// List of errors a meta transaction can be rejected or fail with. Lower
// level errors are wrapped, so match with errors.Is.
var (
	// ErrInvalidSignature is returned if the signature does not recover to a
	// public key.
	ErrInvalidSignature = accountsigner.ErrInvalidSignature

	// ErrAccountMismatch is returned if the recovered key does not belong to
	// the claimed caller.
	ErrAccountMismatch = accountsigner.ErrAccountMismatch

	// ErrDecode is returned if the call data is not a known action.
	ErrDecode = errors.New("action decode failed")

	// ErrNonce is returned if the nonce is not acceptable. ErrStaleNonce
	// narrows it to an already consumed nonce, ErrFutureNonce to a nonce
	// executed ahead of its predecessor.
	ErrNonce       = noncestore.ErrNonce
	ErrStaleNonce  = noncestore.ErrStaleNonce
	ErrFutureNonce = noncestore.ErrFutureNonce

	// ErrPayment is returned if a fee cannot be withdrawn or settled.
	ErrPayment = fees.ErrPayment

	// ErrUnexpected is returned for internal failures: storage errors and
	// account identifiers that do not decode.
	ErrUnexpected = errors.New("unexpected internal failure")

	errMissingLedger = errors.New("core: gateway needs a balance ledger")
	errMissingNonces = errors.New("core: gateway needs a nonce store")
)
