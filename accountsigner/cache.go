package accountsigner

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/metagate/core/types"
)

// recovered is a cached signer.
type recovered struct {
	pub     *btcec.PublicKey
	account types.AccountID
}

// Recoverer recovers signers and memoizes the result per (signature, digest).
// The same candidate is typically recovered once at admission and again at
// execution, so the second lookup is served from the cache. Failed
// recoveries are not cached.
type Recoverer struct {
	sigcache *lru.ARCCache // keccak(sig || digest) -> recovered
}

// NewRecoverer creates a recoverer holding up to size entries. A non-positive
// size disables caching.
func NewRecoverer(size int) *Recoverer {
	r := new(Recoverer)
	if size > 0 {
		r.sigcache, _ = lru.NewARC(size)
	}
	return r
}

func cacheKey(sig [SignatureLength]byte, digest common.Hash) common.Hash {
	return crypto.Keccak256Hash(sig[:], digest[:])
}

// Recover returns the public key and account id of the signer of digest.
func (r *Recoverer) Recover(sig [SignatureLength]byte, digest common.Hash) (*btcec.PublicKey, types.AccountID, error) {
	var key common.Hash
	if r.sigcache != nil {
		key = cacheKey(sig, digest)
		if cached, ok := r.sigcache.Get(key); ok {
			entry := cached.(recovered)
			return entry.pub, entry.account, nil
		}
	}
	pub, err := RecoverPublicKey(sig, digest)
	if err != nil {
		return nil, types.AccountID{}, err
	}
	account, err := AccountFromPubkey(pub)
	if err != nil {
		return nil, types.AccountID{}, err
	}
	if r.sigcache != nil {
		r.sigcache.Add(key, recovered{pub: pub, account: account})
	}
	return pub, account, nil
}

// Len reports the number of cached signers.
func (r *Recoverer) Len() int {
	if r.sigcache == nil {
		return 0
	}
	return r.sigcache.Len()
}
