// Package balances defines the account balance ledger the gateway debits
// fees from, plus an in-memory reference implementation.
package balances

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
)

var (
	ErrInsufficientBalance  = errors.New("balances: insufficient balance")
	ErrLiquidityRestriction = errors.New("balances: funds are frozen")
	ErrKeepAlive            = errors.New("balances: withdrawal would kill the account")
	ErrExistentialDeposit   = errors.New("balances: deposit below existential deposit")
	ErrOverflow             = errors.New("balances: balance overflow")
)

// WithdrawReasons is a bit set naming why funds leave an account.
type WithdrawReasons uint8

const (
	ReasonTransactionPayment WithdrawReasons = 1 << iota
	ReasonTransfer
	ReasonReserve
	ReasonFee
	ReasonTip
)

// Has reports whether every reason in o is also in r.
func (r WithdrawReasons) Has(o WithdrawReasons) bool { return r&o == o }

// ExistenceRequirement tells a withdrawal whether it may reap the account.
type ExistenceRequirement uint8

const (
	KeepAlive ExistenceRequirement = iota
	AllowDeath
)

// Preservation selects how much of the existential deposit counts as
// reducible.
type Preservation uint8

const (
	// Expendable allows the account to be drained completely.
	Expendable Preservation = iota
	// Protect keeps the existential deposit in place.
	Protect
	// Preserve keeps the existential deposit and refuses to reap even with
	// outstanding references.
	Preserve
)

// Fortitude selects whether frozen funds are counted as reducible.
type Fortitude uint8

const (
	Polite Fortitude = iota
	Force
)

// Ledger is the balance store consulted and debited by the gateway. Every
// method must be safe for concurrent use.
type Ledger interface {
	// Balance returns the free balance of who.
	Balance(who types.AccountID) *uint256.Int
	// ReducibleBalance returns what can be withdrawn from who right now.
	ReducibleBalance(who types.AccountID, preservation Preservation, fortitude Fortitude) *uint256.Int
	// Withdraw debits amount from who. A zero amount always succeeds.
	Withdraw(who types.AccountID, amount *uint256.Int, reasons WithdrawReasons, existence ExistenceRequirement) error
	// Deposit credits amount to who, creating the account when needed.
	Deposit(who types.AccountID, amount *uint256.Int) error
	// Transfer moves amount from one account to another.
	Transfer(from, to types.AccountID, amount *uint256.Int, existence ExistenceRequirement) error
}
