package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

const (
	// MaxCallDataLen bounds the opaque action bytes carried by a meta transaction.
	MaxCallDataLen = 2048
	// SignatureLength is r || s || v.
	SignatureLength = 65
)

var (
	ErrCallDataTooLarge = errors.New("types: call data exceeds bound")
	ErrBadSignatureLen  = errors.New("types: signature must be 65 bytes")
)

// MetaTransaction is a request, signed off-chain with an EIP-712 typed-data
// signature, to execute CallData on behalf of Who.
type MetaTransaction struct {
	Who       AccountID
	CallData  []byte
	Nonce     uint64
	Signature [SignatureLength]byte
	Tip       *uint256.Int `rlp:"optional"`
}

// TipOrZero returns a copy of the tip, or zero when none was given.
func (tx *MetaTransaction) TipOrZero() *uint256.Int {
	if tx.Tip == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(tx.Tip)
}

// SanityCheck enforces the static bounds of the request.
func (tx *MetaTransaction) SanityCheck() error {
	if len(tx.CallData) > MaxCallDataLen {
		return fmt.Errorf("%w: have %d max %d", ErrCallDataTooLarge, len(tx.CallData), MaxCallDataLen)
	}
	return nil
}

// Hash returns keccak256(rlp(tx)), used to identify the request in logs.
func (tx *MetaTransaction) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(enc)
}

// EncodeMetaTransaction serialises tx into its RLP wire form.
func EncodeMetaTransaction(tx *MetaTransaction) ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DecodeMetaTransaction parses the RLP wire form and applies SanityCheck.
func DecodeMetaTransaction(data []byte) (*MetaTransaction, error) {
	var tx MetaTransaction
	if err := rlp.DecodeBytes(data, &tx); err != nil {
		return nil, err
	}
	if err := tx.SanityCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

type metaTxJSON struct {
	Who       AccountID      `json:"who"`
	CallData  hexutil.Bytes  `json:"callData"`
	Nonce     hexutil.Uint64 `json:"nonce"`
	Signature hexutil.Bytes  `json:"signature"`
	Tip       *uint256.Int   `json:"tip,omitempty"`
}

// MarshalJSON encodes tx in the hex-heavy style of RPC objects.
func (tx *MetaTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(&metaTxJSON{
		Who:       tx.Who,
		CallData:  tx.CallData,
		Nonce:     hexutil.Uint64(tx.Nonce),
		Signature: tx.Signature[:],
		Tip:       tx.Tip,
	})
}

// UnmarshalJSON decodes the RPC style object produced by MarshalJSON.
func (tx *MetaTransaction) UnmarshalJSON(input []byte) error {
	var dec metaTxJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if len(dec.Signature) != SignatureLength {
		return fmt.Errorf("%w: have %d", ErrBadSignatureLen, len(dec.Signature))
	}
	tx.Who = dec.Who
	tx.CallData = dec.CallData
	tx.Nonce = uint64(dec.Nonce)
	copy(tx.Signature[:], dec.Signature)
	tx.Tip = dec.Tip
	return nil
}
