package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// AccountIDLength is the byte length of a local account identifier.
const AccountIDLength = 32

// DefaultSS58Prefix is the generic substrate address format.
const DefaultSS58Prefix uint16 = 42

var ss58Magic = []byte("SS58PRE")

var (
	ErrInvalidAccountID = errors.New("types: invalid account id length")
	ErrInvalidSS58      = errors.New("types: invalid ss58 address")
	ErrSS58Checksum     = errors.New("types: ss58 checksum mismatch")
	ErrSS58Prefix       = errors.New("types: ss58 prefix out of range")
)

// AccountID is the 32-byte identifier of an account on the local ledger.
type AccountID [AccountIDLength]byte

// BytesToAccountID reinterprets b as an account id. Unlike common.BytesToHash
// it does not crop or pad: anything but exactly 32 bytes is an error.
func BytesToAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != AccountIDLength {
		return id, fmt.Errorf("%w: have %d want %d", ErrInvalidAccountID, len(b), AccountIDLength)
	}
	copy(id[:], b)
	return id, nil
}

// HexToAccountID parses a 0x-prefixed 32 byte hex string.
func HexToAccountID(s string) (AccountID, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return AccountID{}, err
	}
	return BytesToAccountID(raw)
}

func (a AccountID) Bytes() []byte { return a[:] }

func (a AccountID) Hex() string { return hexutil.Encode(a[:]) }

// String implements fmt.Stringer using the default ss58 format.
func (a AccountID) String() string { return a.SS58(DefaultSS58Prefix) }

// TerminalString shortens the id for log output.
func (a AccountID) TerminalString() string {
	return fmt.Sprintf("%x..%x", a[:3], a[29:])
}

func (a AccountID) IsZero() bool { return a == AccountID{} }

// MarshalText encodes the id as 0x-prefixed hex.
func (a AccountID) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

// UnmarshalText accepts either 0x-prefixed hex or an ss58 address.
func (a *AccountID) UnmarshalText(input []byte) error {
	if bytes.HasPrefix(input, []byte("0x")) || bytes.HasPrefix(input, []byte("0X")) {
		raw := make([]byte, hex.DecodedLen(len(input)-2))
		if _, err := hex.Decode(raw, input[2:]); err != nil {
			return err
		}
		id, err := BytesToAccountID(raw)
		if err != nil {
			return err
		}
		*a = id
		return nil
	}
	id, _, err := ParseSS58(string(input))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

func ss58PrefixBytes(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix < 16384:
		first := byte((prefix&0x00fc)>>2) | 0x40
		second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
		return []byte{first, second}, nil
	default:
		return nil, ErrSS58Prefix
	}
}

func ss58Checksum(body []byte) []byte {
	h := blake2b.Sum512(append(append([]byte{}, ss58Magic...), body...))
	return h[:2]
}

// SS58 renders the account id in the SS58 address format under the given
// network prefix. Prefixes of 16384 and above are not representable and are
// rendered with the default prefix.
func (a AccountID) SS58(prefix uint16) string {
	pre, err := ss58PrefixBytes(prefix)
	if err != nil {
		pre, _ = ss58PrefixBytes(DefaultSS58Prefix)
	}
	body := make([]byte, 0, len(pre)+AccountIDLength+2)
	body = append(body, pre...)
	body = append(body, a[:]...)
	body = append(body, ss58Checksum(body)...)
	return base58.Encode(body)
}

// ParseSS58 decodes an SS58 address carrying a 32-byte account id and
// returns the id together with its network prefix.
func ParseSS58(s string) (AccountID, uint16, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return AccountID{}, 0, fmt.Errorf("%w: %v", ErrInvalidSS58, err)
	}
	if len(raw) == 0 {
		return AccountID{}, 0, ErrInvalidSS58
	}
	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return AccountID{}, 0, ErrInvalidSS58
		}
		lower := uint16(raw[0]<<2) | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0x3f)
		prefix, prefixLen = (lower&0x00ff)|(upper<<8), 2
	default:
		return AccountID{}, 0, ErrSS58Prefix
	}
	if len(raw) != prefixLen+AccountIDLength+2 {
		return AccountID{}, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidSS58, len(raw))
	}
	body, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	if !bytes.Equal(ss58Checksum(body), sum) {
		return AccountID{}, 0, ErrSS58Checksum
	}
	id, err := BytesToAccountID(body[prefixLen:])
	if err != nil {
		return AccountID{}, 0, err
	}
	return id, prefix, nil
}
