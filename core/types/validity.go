package types

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// TxSource tells the admission check where a candidate came from.
type TxSource uint8

const (
	// TxSourceLocal marks requests submitted through this node's own API.
	TxSourceLocal TxSource = iota
	// TxSourceInBlock marks requests re-checked while importing a block.
	TxSourceInBlock
	// TxSourceExternal marks requests gossiped by other nodes.
	TxSourceExternal
)

func (s TxSource) String() string {
	switch s {
	case TxSourceLocal:
		return "local"
	case TxSourceInBlock:
		return "in-block"
	case TxSourceExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Tag is an opaque ordering label. A candidate provides the tags it
// satisfies and requires the tags that must be provided before it.
type Tag []byte

// NonceTag builds the ordering label for (who, nonce) under prefix.
func NonceTag(prefix string, who AccountID, nonce uint64) Tag {
	w := rlp.NewEncoderBuffer(nil)
	l := w.List()
	w.WriteString(prefix)
	w.WriteBytes(who[:])
	w.WriteUint64(nonce)
	w.ListEnd(l)
	return w.ToBytes()
}

// ValidTransaction is the admission verdict handed to the scheduler.
type ValidTransaction struct {
	Priority  uint64
	Requires  []Tag
	Provides  []Tag
	Longevity uint64
	Propagate bool
}
