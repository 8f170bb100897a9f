package core

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
	"github.com/tos-network/metagate/sysaction"
	"golang.org/x/crypto/blake2b"
)

var initialBalance = uint256.NewInt(params.Unit)

type testEnv struct {
	gw     *Gateway
	ledger *balances.Memory
	key    *ecdsa.PrivateKey
	who    types.AccountID
}

func accountOf(key *ecdsa.PrivateKey) types.AccountID {
	return types.AccountID(blake2b.Sum256(crypto.CompressPubkey(&key.PublicKey)))
}

func newTestEnv(t *testing.T, mutate func(*params.Config)) *testEnv {
	t.Helper()
	cfg := params.DefaultConfig.Copy()
	if mutate != nil {
		mutate(cfg)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	ledger := balances.NewMemory(cfg.ExistentialDeposit)
	who := accountOf(key)
	ledger.SetBalance(who, initialBalance)

	gw, err := NewGateway(cfg, Collaborators{Ledger: ledger, Nonces: memorydb.New()})
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}
	return &testEnv{gw: gw, ledger: ledger, key: key, who: who}
}

func remarkCall(t *testing.T, remark string) []byte {
	t.Helper()
	data, err := sysaction.MakeSysAction(sysaction.ActionSystemRemarkWithEvent, &sysaction.RemarkPayload{Remark: []byte(remark)})
	if err != nil {
		t.Fatalf("encode remark: %v", err)
	}
	return data
}

func transferCall(t *testing.T, to types.AccountID, amount uint64) []byte {
	t.Helper()
	data, err := sysaction.MakeSysAction(sysaction.ActionBalancesTransfer, &sysaction.TransferPayload{To: to, Amount: uint256.NewInt(amount)})
	if err != nil {
		t.Fatalf("encode transfer: %v", err)
	}
	return data
}

// signed builds a meta transaction claiming who and signs it with key.
func (env *testEnv) signed(t *testing.T, key *ecdsa.PrivateKey, who types.AccountID, callData []byte, nonce uint64, tip *uint256.Int) *types.MetaTransaction {
	t.Helper()
	tx := &types.MetaTransaction{Who: who, CallData: callData, Nonce: nonce, Tip: tip}
	digest := env.gw.Digest(tx)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	copy(tx.Signature[:], sig)
	return tx
}

func (env *testEnv) tx(t *testing.T, callData []byte, nonce uint64) *types.MetaTransaction {
	return env.signed(t, env.key, env.who, callData, nonce, nil)
}

func (env *testEnv) balance(who types.AccountID) uint64 {
	return env.ledger.Balance(who).Uint64()
}

func TestValidateAccepts(t *testing.T) {
	env := newTestEnv(t, nil)
	fees := make(chan ServiceFeePaidEvent, 4)
	sub := env.gw.SubscribeServiceFeePaid(fees)
	defer sub.Unsubscribe()

	valid, err := env.gw.Validate(types.TxSourceExternal, env.tx(t, remarkCall(t, "gm"), 0))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if valid.Longevity != params.Longevity || !valid.Propagate || valid.Priority == 0 {
		t.Fatalf("unexpected verdict: %s", spew.Sdump(valid))
	}
	if len(valid.Requires) != 0 {
		t.Fatalf("first nonce requires %x", valid.Requires)
	}
	if want := types.NonceTag(params.TagPrefix, env.who, 0); len(valid.Provides) != 1 || !bytes.Equal(valid.Provides[0], want) {
		t.Fatalf("provides %x want %x", valid.Provides, want)
	}
	serviceFee := params.DefaultConfig.ServiceFee.Uint64()
	if have, want := env.balance(env.who), initialBalance.Uint64()-serviceFee; have != want {
		t.Fatalf("balance after admission %d want %d", have, want)
	}
	if n, _ := env.gw.Nonce(env.who); n != 1 {
		t.Fatalf("nonce counter %d want 1", n)
	}
	select {
	case ev := <-fees:
		if ev.Who != env.who || ev.Fee.Uint64() != serviceFee {
			t.Fatalf("unexpected event %s", spew.Sdump(ev))
		}
	default:
		t.Fatalf("no ServiceFeePaid event")
	}
}

func TestValidateAndApply(t *testing.T) {
	env := newTestEnv(t, nil)
	outcomes := make(chan ActionOutcomeEvent, 4)
	paid := make(chan TransactionFeePaidEvent, 4)
	defer env.gw.SubscribeActionOutcome(outcomes).Unsubscribe()
	defer env.gw.SubscribeTransactionFeePaid(paid).Unsubscribe()

	tx := env.tx(t, remarkCall(t, "hello"), 0)
	_, err := env.gw.Validate(types.TxSourceLocal, tx)
	require.NoError(t, err)
	afterAdmission := env.balance(env.who)

	result, err := env.gw.Apply(tx)
	require.NoError(t, err)
	require.False(t, result.Failed(), "outcome: %s", spew.Sdump(result.Outcome))
	require.Equal(t, env.who, result.Who)
	require.Equal(t, result.EstimatedFee, result.ActualFee, "full weight must cost the estimate")
	require.Equal(t, afterAdmission-result.ActualFee.Uint64(), env.balance(env.who))

	out := <-outcomes
	require.NoError(t, out.Result)
	require.Len(t, out.Events, 1)
	require.IsType(t, sysaction.RemarkedEvent{}, out.Events[0])

	fee := <-paid
	require.Equal(t, result.ActualFee, fee.ActualFee)
	require.True(t, fee.Tip.IsZero())

	// Execution does not consult the nonce again.
	n, err := env.gw.Nonce(env.who)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestTippedExecutionPaysTipOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	paid := make(chan TransactionFeePaidEvent, 4)
	defer env.gw.SubscribeTransactionFeePaid(paid).Unsubscribe()

	tip := uint256.NewInt(params.MilliUnit)
	tx := env.signed(t, env.key, env.who, remarkCall(t, "tipped"), 0, tip)
	_, err := env.gw.Validate(types.TxSourceLocal, tx)
	require.NoError(t, err)
	afterAdmission := env.balance(env.who)

	result, err := env.gw.Apply(tx)
	require.NoError(t, err)
	require.False(t, result.Failed(), spew.Sdump(result.Outcome))
	require.Equal(t, tip, result.Tip)

	untipped := env.gw.fees.Estimate(result.Length, result.Info, new(uint256.Int))
	require.Equal(t, new(uint256.Int).Add(untipped, tip), result.ActualFee, "actual fee must include the tip")
	require.Equal(t, afterAdmission-result.ActualFee.Uint64(), env.balance(env.who))

	fee := <-paid
	require.Equal(t, env.who, fee.Who)
	require.Equal(t, tip, fee.Tip)
	require.Equal(t, result.ActualFee, fee.ActualFee)
	require.Len(t, paid, 0, "fee paid more than once")
}

func TestReplayIsStale(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.tx(t, remarkCall(t, "once"), 0)
	if _, err := env.gw.Validate(types.TxSourceExternal, tx); err != nil {
		t.Fatalf("first admission: %v", err)
	}
	before := env.balance(env.who)
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	if !errors.Is(err, ErrStaleNonce) || !errors.Is(err, ErrNonce) {
		t.Fatalf("replay not stale: %v", err)
	}
	if after := env.balance(env.who); after != before {
		t.Fatalf("stale replay changed the balance: %d -> %d", before, after)
	}
}

func TestAccountMismatchBeforeWithdrawal(t *testing.T) {
	env := newTestEnv(t, nil)
	victim := types.AccountID{0x42}
	env.ledger.SetBalance(victim, initialBalance)

	// Signed by the test key while claiming to be victim.
	tx := env.signed(t, env.key, victim, remarkCall(t, "steal"), 0, nil)
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("expected ErrAccountMismatch, got %v", err)
	}
	if env.balance(victim) != initialBalance.Uint64() || env.balance(env.who) != initialBalance.Uint64() {
		t.Fatalf("mismatch withdrew funds")
	}
	for _, who := range []types.AccountID{victim, env.who} {
		if n, _ := env.gw.Nonce(who); n != 0 {
			t.Fatalf("mismatch advanced a nonce to %d", n)
		}
	}
	if _, err := env.gw.Apply(tx); !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("execution accepted a mismatched caller: %v", err)
	}
}

func TestInvalidSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.tx(t, remarkCall(t, "x"), 0)
	tx.Signature[64] = 5
	if _, err := env.gw.Validate(types.TxSourceExternal, tx); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, err := env.gw.Apply(tx); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestTamperedCallData(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.tx(t, remarkCall(t, "pay 1"), 0)
	tx.CallData = remarkCall(t, "pay 9")
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	if !errors.Is(err, ErrAccountMismatch) && !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered call data admitted: %v", err)
	}
	if env.balance(env.who) != initialBalance.Uint64() {
		t.Fatalf("tampered request charged the signer")
	}
}

func TestFutureNonce(t *testing.T) {
	env := newTestEnv(t, nil)
	valid, err := env.gw.Validate(types.TxSourceExternal, env.tx(t, remarkCall(t, "later"), 3))
	if err != nil {
		t.Fatalf("future nonce rejected: %v", err)
	}
	if want := types.NonceTag(params.TagPrefix, env.who, 2); len(valid.Requires) != 1 || !bytes.Equal(valid.Requires[0], want) {
		t.Fatalf("requires %x want %x", valid.Requires, want)
	}
	if n, _ := env.gw.Nonce(env.who); n != 0 {
		t.Fatalf("future nonce advanced the counter to %d", n)
	}
}

func TestFutureNonceCommitsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	later := env.tx(t, remarkCall(t, "second"), 1)
	if _, err := env.gw.Validate(types.TxSourceExternal, later); err != nil {
		t.Fatalf("future nonce rejected: %v", err)
	}
	if env.balance(env.who) != initialBalance.Uint64() {
		t.Fatalf("future nonce paid the service fee")
	}
	if _, err := env.gw.Validate(types.TxSourceExternal, env.tx(t, remarkCall(t, "first"), 0)); err != nil {
		t.Fatalf("current nonce rejected: %v", err)
	}
	// Once its predecessor is in, the same request commits on revalidation.
	valid, err := env.gw.Validate(types.TxSourceExternal, later)
	if err != nil {
		t.Fatalf("revalidation: %v", err)
	}
	if len(valid.Requires) != 0 {
		t.Fatalf("revalidated request still requires %x", valid.Requires)
	}
	serviceFee := env.gw.Config().ServiceFee.Uint64()
	if have, want := env.balance(env.who), initialBalance.Uint64()-2*serviceFee; have != want {
		t.Fatalf("balance %d want %d", have, want)
	}
	if n, _ := env.gw.Nonce(env.who); n != 2 {
		t.Fatalf("nonce counter %d want 2", n)
	}
}

func TestPriorityFollowsTip(t *testing.T) {
	env := newTestEnv(t, nil)
	call := remarkCall(t, "tip")
	var prev uint64
	for i, tip := range []uint64{0, 1, 5, 1000} {
		tx := env.signed(t, env.key, env.who, call, uint64(i), uint256.NewInt(tip))
		valid, err := env.gw.Validate(types.TxSourceExternal, tx)
		if err != nil {
			t.Fatalf("tip %d: %v", tip, err)
		}
		if valid.Priority <= prev {
			t.Fatalf("tip %d: priority %d not above %d", tip, valid.Priority, prev)
		}
		prev = valid.Priority
	}
}

func TestDryRunAdmissionDoesNotMutate(t *testing.T) {
	env := newTestEnv(t, func(c *params.Config) { c.Admission = params.AdmissionDryRun })
	tx := env.tx(t, remarkCall(t, "dry"), 0)
	for i := 0; i < 3; i++ {
		if _, err := env.gw.Validate(types.TxSourceExternal, tx); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if env.balance(env.who) != initialBalance.Uint64() {
		t.Fatalf("dry-run admission withdrew funds")
	}
	if n, _ := env.gw.Nonce(env.who); n != 0 {
		t.Fatalf("dry-run admission advanced the counter to %d", n)
	}

	// The service fee still counts towards the balance check.
	env.ledger.SetBalance(env.who, new(uint256.Int).Add(params.DefaultConfig.ExistentialDeposit, params.DefaultConfig.ServiceFee))
	if _, err := env.gw.Validate(types.TxSourceExternal, tx); !errors.Is(err, ErrPayment) {
		t.Fatalf("expected ErrPayment, got %v", err)
	}
}

func TestDryRunExecutionCommitsOnce(t *testing.T) {
	env := newTestEnv(t, func(c *params.Config) { c.Admission = params.AdmissionDryRun })
	fees := make(chan ServiceFeePaidEvent, 4)
	defer env.gw.SubscribeServiceFeePaid(fees).Unsubscribe()

	bob := types.AccountID{0xb0}
	tx := env.tx(t, transferCall(t, bob, params.MilliUnit*10), 0)
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	require.NoError(t, err)
	result, err := env.gw.Apply(tx)
	require.NoError(t, err)
	require.False(t, result.Failed(), spew.Sdump(result.Outcome))

	n, err := env.gw.Nonce(env.who)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
	serviceFee := env.gw.Config().ServiceFee.Uint64()
	require.Equal(t, initialBalance.Uint64()-serviceFee-params.MilliUnit*10-result.ActualFee.Uint64(), env.balance(env.who))
	ev := <-fees
	require.Equal(t, serviceFee, ev.Fee.Uint64())

	// The same request cannot run again, whether or not it is revalidated.
	_, err = env.gw.Validate(types.TxSourceExternal, tx)
	require.ErrorIs(t, err, ErrStaleNonce)
	_, err = env.gw.Apply(tx)
	require.ErrorIs(t, err, ErrStaleNonce)
	require.Equal(t, uint64(params.MilliUnit*10), env.balance(bob))
	require.Len(t, fees, 0)

	// Execution ahead of the predecessor is refused.
	_, err = env.gw.Apply(env.tx(t, remarkCall(t, "skip"), 5))
	require.ErrorIs(t, err, ErrFutureNonce)
}

func TestInsufficientBalanceKeepsAdmissionEffects(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := env.gw.Config()
	// Enough for the service fee, not for the transaction fee.
	funded := new(uint256.Int).Add(cfg.ExistentialDeposit, cfg.ServiceFee)
	env.ledger.SetBalance(env.who, funded)

	_, err := env.gw.Validate(types.TxSourceExternal, env.tx(t, remarkCall(t, "broke"), 0))
	if !errors.Is(err, ErrPayment) {
		t.Fatalf("expected ErrPayment, got %v", err)
	}
	if have := env.balance(env.who); have != cfg.ExistentialDeposit.Uint64() {
		t.Fatalf("service fee not withdrawn: balance %d", have)
	}
	if n, _ := env.gw.Nonce(env.who); n != 1 {
		t.Fatalf("nonce not consumed: %d", n)
	}
}

func TestServiceFeeUnpayable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.SetBalance(env.who, env.gw.Config().ServiceFee)
	if _, err := env.gw.Validate(types.TxSourceExternal, env.tx(t, remarkCall(t, "x"), 0)); !errors.Is(err, ErrPayment) {
		t.Fatalf("expected ErrPayment, got %v", err)
	}
}

func TestUndecodableCallData(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.tx(t, []byte{0xde, 0xad, 0xbe, 0xef}, 0)
	if _, err := env.gw.Validate(types.TxSourceExternal, tx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if env.balance(env.who) != initialBalance.Uint64() {
		t.Fatalf("undecodable call charged the service fee")
	}
	if _, err := env.gw.Apply(tx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if w, class := env.gw.Weight(tx); !w.IsZero() || class != sysaction.DispatchNormal {
		t.Fatalf("undecodable call weighs %v %v", w, class)
	}
}

func TestOversizedCallData(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.tx(t, make([]byte, types.MaxCallDataLen+1), 0)
	if _, err := env.gw.Validate(types.TxSourceExternal, tx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestFilteredActionStillPaysFees(t *testing.T) {
	env := newTestEnv(t, func(c *params.Config) { c.AllowedActions = []string{"SYSTEM_REMARK"} })
	bob := types.AccountID{0xb0}
	tx := env.tx(t, transferCall(t, bob, params.Unit/10), 0)
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	require.NoError(t, err)
	before := env.balance(env.who)

	result, err := env.gw.Apply(tx)
	require.NoError(t, err)
	require.True(t, result.Failed())
	require.ErrorIs(t, result.Outcome.Err, sysaction.ErrCallFiltered)
	require.Equal(t, uint64(0), env.balance(bob))
	require.Equal(t, before-result.ActualFee.Uint64(), env.balance(env.who))
}

func TestTransferAndFeeCorrection(t *testing.T) {
	collector := types.AccountID{0xfe}
	env := newTestEnv(t, func(c *params.Config) { c.FeeCollector = &collector })
	bob := types.AccountID{0xb0}
	ed := env.gw.Config().ExistentialDeposit.Uint64()
	env.ledger.SetBalance(collector, uint256.NewInt(ed))

	tx := env.tx(t, transferCall(t, bob, params.Unit/10), 0)
	_, err := env.gw.Validate(types.TxSourceExternal, tx)
	require.NoError(t, err)
	result, err := env.gw.Apply(tx)
	require.NoError(t, err)
	require.False(t, result.Failed(), spew.Sdump(result.Outcome))
	require.Equal(t, uint64(params.Unit/10), env.balance(bob))
	require.Equal(t, ed+result.ActualFee.Uint64(), env.balance(collector))

	// A zero transfer reports less weight than declared and is refunded.
	zero := env.tx(t, transferCall(t, bob, 0), 1)
	_, err = env.gw.Validate(types.TxSourceExternal, zero)
	require.NoError(t, err)
	before := env.balance(env.who)
	result, err = env.gw.Apply(zero)
	require.NoError(t, err)
	require.True(t, result.ActualFee.Lt(result.EstimatedFee), spew.Sdump(result))
	require.Equal(t, before-result.ActualFee.Uint64(), env.balance(env.who))
}

func TestWeightAnnotation(t *testing.T) {
	env := newTestEnv(t, nil)
	w, class := env.gw.Weight(env.tx(t, transferCall(t, types.AccountID{1}, 1), 0))
	if w != types.NewWeight(params.TransferRefTime, params.TransferProofSize) || class != sysaction.DispatchNormal {
		t.Fatalf("unexpected weight %v class %v", w, class)
	}
}

func TestNewGatewayRequiresStores(t *testing.T) {
	if _, err := NewGateway(&params.DefaultConfig, Collaborators{Nonces: memorydb.New()}); !errors.Is(err, errMissingLedger) {
		t.Fatalf("expected missing ledger, got %v", err)
	}
	if _, err := NewGateway(&params.DefaultConfig, Collaborators{Ledger: balances.NewMemory(nil)}); !errors.Is(err, errMissingNonces) {
		t.Fatalf("expected missing nonces, got %v", err)
	}
	closed := params.DefaultConfig.Copy()
	closed.AllowedActions = nil
	if _, err := NewGateway(closed, Collaborators{Ledger: balances.NewMemory(nil), Nonces: memorydb.New()}); !errors.Is(err, params.ErrEmptyAllowList) {
		t.Fatalf("expected empty allow-list error, got %v", err)
	}
	bad := params.DefaultConfig.Copy()
	bad.EIP712.Name = ""
	if _, err := NewGateway(bad, Collaborators{Ledger: balances.NewMemory(nil), Nonces: memorydb.New()}); !errors.Is(err, params.ErrMissingDomainName) {
		t.Fatalf("expected config error, got %v", err)
	}
}
