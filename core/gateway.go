package core

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/metagate/accountsigner"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/crypto/eip712"
	"github.com/tos-network/metagate/fees"
	"github.com/tos-network/metagate/noncestore"
	"github.com/tos-network/metagate/params"
	"github.com/tos-network/metagate/sysaction"
)

// Collaborators are the stores and policies a Gateway runs against. Ledger
// and Nonces are required; the rest default from the configuration.
type Collaborators struct {
	Ledger   balances.Ledger
	Nonces   ethdb.KeyValueStore
	Registry *sysaction.Registry
	Policy   fees.Policy
	Charger  fees.Charger
	Capacity BlockCapacity
}

// Gateway admits and executes meta transactions signed with EIP-712 by an
// EVM key on behalf of a local account.
//
// Admission (Validate) may be called concurrently. Execution (Apply) is
// expected to be serialised by the host, once per admitted request.
type Gateway struct {
	config   *params.Config
	hasher   *eip712.Hasher
	signers  *accountsigner.Recoverer
	nonces   *noncestore.Sequencer
	ledger   balances.Ledger
	registry *sysaction.Registry
	fees     *fees.Coordinator
	capacity BlockCapacity
	allowed  mapset.Set[sysaction.ActionKind]

	serviceFeeFeed event.Feed
	txFeeFeed      event.Feed
	outcomeFeed    event.Feed
}

// NewGateway validates cfg and wires the gateway. cfg is copied.
func NewGateway(cfg *params.Config, deps Collaborators) (*Gateway, error) {
	config := cfg.Copy()
	if err := config.CheckConfig(); err != nil {
		return nil, err
	}
	if deps.Ledger == nil {
		return nil, errMissingLedger
	}
	if deps.Nonces == nil {
		return nil, errMissingNonces
	}
	if deps.Registry == nil {
		deps.Registry = sysaction.DefaultRegistry()
	}
	if deps.Policy == nil {
		deps.Policy = fees.NewLinearPolicy(config.Fees)
	}
	if deps.Charger == nil {
		deps.Charger = fees.NewCurrencyCharger(deps.Ledger, config.FeeCollector)
	}
	if deps.Capacity == nil {
		deps.Capacity = config.Block
	}
	g := &Gateway{
		config:   config,
		hasher:   eip712.NewHasher(eip712.DomainFromConfig(config.EIP712)),
		signers:  accountsigner.NewRecoverer(config.SignerCacheSize),
		nonces:   noncestore.New(deps.Nonces),
		ledger:   deps.Ledger,
		registry: deps.Registry,
		fees:     fees.NewCoordinator(deps.Ledger, deps.Policy, deps.Charger, config.ServiceFee),
		capacity: deps.Capacity,
		allowed:  sysaction.NewAllowList(config.AllowedActions),
	}
	log.Info("Initialised meta transaction gateway", "domain", config.EIP712.Name, "version", config.EIP712.Version,
		"chainid", config.EIP712.ChainID, "contract", config.EIP712.VerifyingContract, "admission", config.Admission,
		"allowed", g.allowed.Cardinality())
	return g, nil
}

// Config returns the validated configuration. It must not be modified.
func (g *Gateway) Config() *params.Config { return g.config }

// DomainSeparator returns the EIP-712 domain separator signers commit to.
func (g *Gateway) DomainSeparator() common.Hash { return g.hasher.DomainSeparator() }

// Digest returns the typed-data digest tx must be signed over.
func (g *Gateway) Digest(tx *types.MetaTransaction) common.Hash {
	return g.hasher.Digest(tx.Who.SS58(g.config.SS58Prefix), tx.CallData, tx.Nonce)
}

// Nonce returns the next nonce expected from who.
func (g *Gateway) Nonce(who types.AccountID) (uint64, error) {
	n, err := g.nonces.Get(who)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return n, nil
}

// Weight annotates tx with the weight and class of the action it carries.
// Undecodable call data weighs nothing and is Normal.
func (g *Gateway) Weight(tx *types.MetaTransaction) (types.Weight, sysaction.DispatchClass) {
	sa, err := g.registry.Decode(tx.CallData)
	if err != nil {
		return types.Weight{}, sysaction.DispatchNormal
	}
	info, err := g.registry.Info(sa)
	if err != nil {
		return types.Weight{}, sysaction.DispatchNormal
	}
	return types.Weight{}.SaturatingAdd(info.Weight), info.Class
}

// recoverCaller recovers the signer of tx and checks it is the claimed
// caller.
func (g *Gateway) recoverCaller(tx *types.MetaTransaction, digest common.Hash) (types.AccountID, error) {
	_, signer, err := g.signers.Recover(tx.Signature, digest)
	if err != nil {
		if errors.Is(err, types.ErrInvalidAccountID) {
			return types.AccountID{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
		}
		return types.AccountID{}, err
	}
	if signer != tx.Who {
		return types.AccountID{}, fmt.Errorf("%w: claimed %s recovered %s", ErrAccountMismatch, tx.Who.Hex(), signer.Hex())
	}
	return signer, nil
}

// decodeAction decodes the call data and looks up its declared cost.
func (g *Gateway) decodeAction(callData []byte) (*sysaction.SysAction, sysaction.DispatchInfo, uint32, error) {
	sa, err := g.registry.Decode(callData)
	if err != nil {
		return nil, sysaction.DispatchInfo{}, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	info, err := g.registry.Info(sa)
	if err != nil {
		return nil, sysaction.DispatchInfo{}, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	length, err := g.registry.EncodedSize(sa)
	if err != nil {
		return nil, sysaction.DispatchInfo{}, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return sa, info, length, nil
}

// SubscribeServiceFeePaid registers ch for ServiceFeePaidEvent.
func (g *Gateway) SubscribeServiceFeePaid(ch chan<- ServiceFeePaidEvent) event.Subscription {
	return g.serviceFeeFeed.Subscribe(ch)
}

// SubscribeTransactionFeePaid registers ch for TransactionFeePaidEvent.
func (g *Gateway) SubscribeTransactionFeePaid(ch chan<- TransactionFeePaidEvent) event.Subscription {
	return g.txFeeFeed.Subscribe(ch)
}

// SubscribeActionOutcome registers ch for ActionOutcomeEvent.
func (g *Gateway) SubscribeActionOutcome(ch chan<- ActionOutcomeEvent) event.Subscription {
	return g.outcomeFeed.Subscribe(ch)
}
