package balances

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
)

type account struct {
	free   uint256.Int
	frozen uint256.Int
}

// Memory is a map backed Ledger with an existential deposit and frozen
// funds. It is the ledger used by the CLI and by tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*account
	ed       uint256.Int
}

// NewMemory creates an empty ledger. A nil existential deposit is zero.
func NewMemory(existentialDeposit *uint256.Int) *Memory {
	m := &Memory{accounts: make(map[types.AccountID]*account)}
	if existentialDeposit != nil {
		m.ed.Set(existentialDeposit)
	}
	return m
}

// ExistentialDeposit returns the minimum balance of a live account.
func (m *Memory) ExistentialDeposit() *uint256.Int {
	return new(uint256.Int).Set(&m.ed)
}

// SetBalance overwrites the free balance of who, bypassing the existential
// deposit. Used for genesis allocation.
func (m *Memory) SetBalance(who types.AccountID, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.accounts[who]
	if acc == nil {
		acc = new(account)
		m.accounts[who] = acc
	}
	acc.free.Set(amount)
}

// Freeze locks amount of who's free balance against polite withdrawals.
func (m *Memory) Freeze(who types.AccountID, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acc := m.accounts[who]; acc != nil {
		acc.frozen.Set(amount)
	}
}

// Exists reports whether who has a live account.
func (m *Memory) Exists(who types.AccountID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[who]
	return ok
}

// Balance implements Ledger.
func (m *Memory) Balance(who types.AccountID) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc := m.accounts[who]; acc != nil {
		return new(uint256.Int).Set(&acc.free)
	}
	return new(uint256.Int)
}

// ReducibleBalance implements Ledger.
func (m *Memory) ReducibleBalance(who types.AccountID, preservation Preservation, fortitude Fortitude) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reducible(m.accounts[who], preservation, fortitude)
}

func (m *Memory) reducible(acc *account, preservation Preservation, fortitude Fortitude) *uint256.Int {
	out := new(uint256.Int)
	if acc == nil {
		return out
	}
	// The untouchable part is the larger of the frozen funds and the
	// existential deposit being preserved.
	untouchable := new(uint256.Int)
	if fortitude == Polite {
		untouchable.Set(&acc.frozen)
	}
	if preservation != Expendable && untouchable.Lt(&m.ed) {
		untouchable.Set(&m.ed)
	}
	if acc.free.Gt(untouchable) {
		out.Sub(&acc.free, untouchable)
	}
	return out
}

// Withdraw implements Ledger.
func (m *Memory) Withdraw(who types.AccountID, amount *uint256.Int, reasons WithdrawReasons, existence ExistenceRequirement) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withdraw(who, amount, reasons, existence)
}

func (m *Memory) withdraw(who types.AccountID, amount *uint256.Int, reasons WithdrawReasons, existence ExistenceRequirement) error {
	acc := m.accounts[who]
	if acc == nil || acc.free.Lt(amount) {
		return fmt.Errorf("%w: account %s needs %s", ErrInsufficientBalance, who.Hex(), amount.Dec())
	}
	remaining := new(uint256.Int).Sub(&acc.free, amount)
	if remaining.Lt(&acc.frozen) {
		return fmt.Errorf("%w: account %s frozen %s", ErrLiquidityRestriction, who.Hex(), acc.frozen.Dec())
	}
	if remaining.Lt(&m.ed) {
		if existence == KeepAlive {
			return fmt.Errorf("%w: account %s remaining %s", ErrKeepAlive, who.Hex(), remaining.Dec())
		}
		// Dust below the existential deposit is dropped with the account.
		delete(m.accounts, who)
		log.Debug("Reaped account", "who", who.TerminalString(), "dust", remaining, "reasons", reasons)
		return nil
	}
	acc.free.Set(remaining)
	return nil
}

// Deposit implements Ledger.
func (m *Memory) Deposit(who types.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deposit(who, amount)
}

func (m *Memory) deposit(who types.AccountID, amount *uint256.Int) error {
	acc := m.accounts[who]
	if acc == nil {
		if amount.Lt(&m.ed) {
			return fmt.Errorf("%w: account %s deposit %s", ErrExistentialDeposit, who.Hex(), amount.Dec())
		}
		acc = new(account)
		m.accounts[who] = acc
	}
	if _, overflow := acc.free.AddOverflow(&acc.free, amount); overflow {
		return fmt.Errorf("%w: account %s", ErrOverflow, who.Hex())
	}
	return nil
}

// Transfer implements Ledger. Either both sides change or neither does.
func (m *Memory) Transfer(from, to types.AccountID, amount *uint256.Int, existence ExistenceRequirement) error {
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the credit first so a failed deposit leaves the debit undone.
	if dst := m.accounts[to]; dst == nil {
		if amount.Lt(&m.ed) {
			return fmt.Errorf("%w: account %s deposit %s", ErrExistentialDeposit, to.Hex(), amount.Dec())
		}
	} else if _, overflow := new(uint256.Int).AddOverflow(&dst.free, amount); overflow {
		return fmt.Errorf("%w: account %s", ErrOverflow, to.Hex())
	}
	if err := m.withdraw(from, amount, ReasonTransfer, existence); err != nil {
		return err
	}
	return m.deposit(to, amount)
}

// Accounts returns a snapshot of every live account's free balance.
func (m *Memory) Accounts() map[types.AccountID]*uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[types.AccountID]*uint256.Int, len(m.accounts))
	for who, acc := range m.accounts {
		out[who] = new(uint256.Int).Set(&acc.free)
	}
	return out
}
