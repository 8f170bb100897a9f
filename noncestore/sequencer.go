// Package noncestore keeps the per-account next-expected nonce of meta
// transactions and decides how a candidate nonce orders against it.
package noncestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
)

var (
	// ErrNonce is the class of every nonce rejection.
	ErrNonce = errors.New("noncestore: invalid nonce")
	// ErrStaleNonce is returned for a nonce that was already consumed.
	ErrStaleNonce = fmt.Errorf("%w: stale", ErrNonce)
	// ErrFutureNonce is returned by Consume for a nonce ahead of the counter.
	ErrFutureNonce = fmt.Errorf("%w: future", ErrNonce)
	// ErrNonceExhausted is returned when the counter cannot advance.
	ErrNonceExhausted = fmt.Errorf("%w: counter exhausted", ErrNonce)
	// ErrCorruptCounter is returned when a stored counter is not 8 bytes.
	ErrCorruptCounter = errors.New("noncestore: corrupt counter record")
)

var counterPrefix = []byte("metagate.nonce")

// counterKey derives the database key of who's counter.
func counterKey(who types.AccountID) []byte {
	buf := make([]byte, 0, len(counterPrefix)+1+len(who))
	buf = append(buf, counterPrefix...)
	buf = append(buf, 0x00)
	buf = append(buf, who[:]...)
	return crypto.Keccak256(buf)
}

// Verdict is the ordering outcome of an accepted nonce.
type Verdict struct {
	Requires []types.Tag // Empty when the nonce is the next expected one.
	Provides []types.Tag
	Advanced bool // Whether the counter moved.
}

// Sequencer enforces strictly ordered one-time nonces per account.
type Sequencer struct {
	db     ethdb.KeyValueStore
	prefix string
	mu     sync.Mutex // serialises read-modify-write of counters
}

// New creates a sequencer over db. Counters absent from db read as zero.
func New(db ethdb.KeyValueStore) *Sequencer {
	return &Sequencer{db: db, prefix: params.TagPrefix}
}

// Get returns the next expected nonce of who.
func (s *Sequencer) Get(who types.AccountID) (uint64, error) {
	return s.read(who)
}

func (s *Sequencer) read(who types.AccountID) (uint64, error) {
	key := counterKey(who)
	has, err := s.db.Has(key)
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: account %s has %d bytes", ErrCorruptCounter, who.Hex(), len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Sequencer) write(who types.AccountID, n uint64) error {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], n)
	return s.db.Put(counterKey(who), enc[:])
}

// Set overwrites the counter of who. It is meant for genesis and tests.
func (s *Sequencer) Set(who types.AccountID, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(who, n)
}

func (s *Sequencer) verdict(who types.AccountID, nonce, current uint64) (Verdict, error) {
	if nonce < current {
		return Verdict{}, fmt.Errorf("%w: account %s nonce %d, expected %d", ErrStaleNonce, who.Hex(), nonce, current)
	}
	v := Verdict{Provides: []types.Tag{types.NonceTag(s.prefix, who, nonce)}}
	if nonce > current {
		// nonce > current >= 0, so nonce-1 cannot underflow.
		v.Requires = []types.Tag{types.NonceTag(s.prefix, who, nonce-1)}
		return v, nil
	}
	if current == math.MaxUint64 {
		return Verdict{}, fmt.Errorf("%w: account %s", ErrNonceExhausted, who.Hex())
	}
	v.Advanced = true
	return v, nil
}

// Peek reports the verdict Check would return, without touching the store.
func (s *Sequencer) Peek(who types.AccountID, nonce uint64) (Verdict, error) {
	current, err := s.read(who)
	if err != nil {
		return Verdict{}, err
	}
	return s.verdict(who, nonce, current)
}

// Check validates nonce against the counter of who. The counter advances
// only when nonce equals it; a future nonce is accepted speculatively and
// requires its predecessor's tag.
func (s *Sequencer) Check(who types.AccountID, nonce uint64) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(who)
	if err != nil {
		return Verdict{}, err
	}
	v, err := s.verdict(who, nonce, current)
	if err != nil {
		return Verdict{}, err
	}
	if v.Advanced {
		if err := s.write(who, current+1); err != nil {
			return Verdict{}, err
		}
		log.Trace("Advanced meta transaction nonce", "who", who.TerminalString(), "next", current+1)
	}
	return v, nil
}

// Consume advances the counter of who past nonce, which must be the next
// expected one. Unlike Check it never accepts a future nonce.
func (s *Sequencer) Consume(who types.AccountID, nonce uint64) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(who)
	if err != nil {
		return Verdict{}, err
	}
	if nonce > current {
		return Verdict{}, fmt.Errorf("%w: account %s nonce %d, expected %d", ErrFutureNonce, who.Hex(), nonce, current)
	}
	v, err := s.verdict(who, nonce, current)
	if err != nil {
		return Verdict{}, err
	}
	if err := s.write(who, current+1); err != nil {
		return Verdict{}, err
	}
	log.Trace("Consumed meta transaction nonce", "who", who.TerminalString(), "next", current+1)
	return v, nil
}

// Key exposes the storage key of who's counter for tooling.
func Key(who types.AccountID) common.Hash {
	return common.BytesToHash(counterKey(who))
}
