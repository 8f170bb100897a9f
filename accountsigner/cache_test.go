package accountsigner

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestRecovererCachesSigner(t *testing.T) {
	key := mustKey(t)
	digest := crypto.Keccak256Hash([]byte("cached"))
	sig := signDigest(t, key, digest)

	r := NewRecoverer(8)
	_, first, err := r.Recover(sig, digest)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if first != accountOf(t, key) {
		t.Fatalf("wrong account %s", first.Hex())
	}
	if r.Len() != 1 {
		t.Fatalf("expected one cached entry, have %d", r.Len())
	}
	_, second, err := r.Recover(sig, digest)
	if err != nil || second != first {
		t.Fatalf("cached lookup disagrees: %s %v", second.Hex(), err)
	}
	if r.Len() != 1 {
		t.Fatalf("repeat lookup grew the cache to %d", r.Len())
	}
}

func TestRecovererSkipsFailures(t *testing.T) {
	r := NewRecoverer(8)
	digest := crypto.Keccak256Hash([]byte("bad"))
	var sig [SignatureLength]byte
	if _, _, err := r.Recover(sig, digest); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("zero signature accepted: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("failure was cached")
	}
}

func TestRecovererWithoutCache(t *testing.T) {
	key := mustKey(t)
	digest := crypto.Keccak256Hash([]byte("uncached"))
	r := NewRecoverer(0)
	if _, account, err := r.Recover(signDigest(t, key, digest), digest); err != nil || account != accountOf(t, key) {
		t.Fatalf("uncached recover failed: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("disabled cache reports %d entries", r.Len())
	}
}
