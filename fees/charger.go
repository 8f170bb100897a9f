package fees

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
)

// Liquidity is what WithdrawFee took from an account, handed back to
// CorrectAndDepositFee once the actual fee is known.
type Liquidity struct {
	Who  types.AccountID
	Paid *uint256.Int // nil when nothing was withdrawn
}

// Amount returns the withdrawn amount, zero when nothing was taken.
func (l Liquidity) Amount() *uint256.Int {
	if l.Paid == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(l.Paid)
}

// Charger moves fees between the payer and the fee destination.
type Charger interface {
	// WithdrawFee takes fee (which includes tip) from who.
	WithdrawFee(who types.AccountID, fee, tip *uint256.Int) (Liquidity, error)
	// CorrectAndDepositFee settles the difference between what was
	// withdrawn and corrected, then routes corrected to the destination.
	CorrectAndDepositFee(who types.AccountID, corrected, tip *uint256.Int, already Liquidity) error
}

// CurrencyCharger charges fees against a balances.Ledger. Collected fees
// go to the optional collector account and are burned otherwise.
type CurrencyCharger struct {
	ledger    balances.Ledger
	collector *types.AccountID
}

// NewCurrencyCharger creates a charger over ledger. collector may be nil.
func NewCurrencyCharger(ledger balances.Ledger, collector *types.AccountID) *CurrencyCharger {
	c := &CurrencyCharger{ledger: ledger}
	if collector != nil {
		dst := *collector
		c.collector = &dst
	}
	return c
}

func withdrawReasons(tip *uint256.Int) balances.WithdrawReasons {
	if tip == nil || tip.IsZero() {
		return balances.ReasonTransactionPayment
	}
	return balances.ReasonTransactionPayment | balances.ReasonTip
}

func (c *CurrencyCharger) WithdrawFee(who types.AccountID, fee, tip *uint256.Int) (Liquidity, error) {
	if fee == nil || fee.IsZero() {
		return Liquidity{Who: who}, nil
	}
	if err := c.ledger.Withdraw(who, fee, withdrawReasons(tip), balances.KeepAlive); err != nil {
		return Liquidity{}, fmt.Errorf("%w: withdraw %s from %s: %v", ErrPayment, fee.Dec(), who.Hex(), err)
	}
	return Liquidity{Who: who, Paid: new(uint256.Int).Set(fee)}, nil
}

func (c *CurrencyCharger) CorrectAndDepositFee(who types.AccountID, corrected, tip *uint256.Int, already Liquidity) error {
	if corrected == nil {
		corrected = new(uint256.Int)
	}
	paid := already.Amount()
	switch {
	case paid.Gt(corrected):
		refund := new(uint256.Int).Sub(paid, corrected)
		if err := c.ledger.Deposit(who, refund); err != nil {
			return fmt.Errorf("%w: refund %s to %s: %v", ErrPayment, refund.Dec(), who.Hex(), err)
		}
	case corrected.Gt(paid):
		extra := new(uint256.Int).Sub(corrected, paid)
		if err := c.ledger.Withdraw(who, extra, withdrawReasons(tip), balances.KeepAlive); err != nil {
			return fmt.Errorf("%w: collect %s from %s: %v", ErrPayment, extra.Dec(), who.Hex(), err)
		}
	}
	if c.collector == nil || corrected.IsZero() {
		return nil
	}
	if err := c.ledger.Deposit(*c.collector, corrected); err != nil {
		// The payer has settled; an undepositable fee is burned.
		log.Warn("Failed to deposit fee to collector", "collector", c.collector.TerminalString(), "fee", corrected, "err", err)
	}
	return nil
}
