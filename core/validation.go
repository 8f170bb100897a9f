package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/noncestore"
	"github.com/tos-network/metagate/params"
)

// Validate is the admission check of a meta transaction. On success it
// returns the priority and ordering tags the scheduler needs.
//
// In commit-on-check mode a passing check of the next expected nonce
// advances the counter and withdraws the service fee; both effects stay
// even if a later step rejects the candidate. A future nonce commits
// nothing: it must be validated again once its Requires are provided. In
// dry-run mode nothing is mutated and Apply commits instead.
func (g *Gateway) Validate(source types.TxSource, tx *types.MetaTransaction) (*types.ValidTransaction, error) {
	valid, err := g.validate(source, tx)
	if err != nil {
		admissionRejectedMeter.Mark(1)
		if errors.Is(err, ErrStaleNonce) {
			admissionStaleMeter.Mark(1)
		}
		log.Debug("Rejected meta transaction", "hash", tx.Hash(), "who", tx.Who.TerminalString(), "nonce", tx.Nonce, "source", source, "err", err)
		return nil, err
	}
	admissionAcceptedMeter.Mark(1)
	return valid, nil
}

func (g *Gateway) validate(source types.TxSource, tx *types.MetaTransaction) (*types.ValidTransaction, error) {
	if err := tx.SanityCheck(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	digest := g.Digest(tx)
	who, err := g.recoverCaller(tx, digest)
	if err != nil {
		return nil, err
	}
	dryRun := g.config.Admission == params.AdmissionDryRun

	var verdict noncestore.Verdict
	if dryRun {
		verdict, err = g.nonces.Peek(who, tx.Nonce)
	} else {
		verdict, err = g.nonces.Check(who, tx.Nonce)
	}
	if err != nil {
		if !errors.Is(err, ErrNonce) {
			err = fmt.Errorf("%w: %v", ErrUnexpected, err)
		}
		return nil, err
	}
	if len(verdict.Requires) > 0 {
		admissionFutureMeter.Mark(1)
	}
	_, info, length, err := g.decodeAction(tx.CallData)
	if err != nil {
		return nil, err
	}
	// The service fee is a separate debit taken before the transaction fee
	// is estimated. Uncommitted candidates only reserve it.
	reserve := new(uint256.Int)
	if dryRun || !verdict.Advanced {
		reserve = g.fees.ServiceFee()
	} else {
		fee, err := g.fees.ChargeServiceFee(who)
		if err != nil {
			return nil, err
		}
		serviceFeeCounter.Inc(int64(fee.Uint64()))
		g.serviceFeeFeed.Send(ServiceFeePaidEvent{Who: who, Fee: fee})
	}
	tip := tx.TipOrZero()
	estimated, err := g.fees.EstimateAndCheck(who, length, info, tip, reserve)
	if err != nil {
		return nil, err
	}
	priority := Priority(g.capacity, info.Weight, length, tip)

	log.Trace("Admitted meta transaction", "hash", tx.Hash(), "who", who.TerminalString(), "nonce", tx.Nonce,
		"source", source, "weight", info.Weight, "len", length, "fee", estimated, "priority", priority, "dryrun", dryRun)
	return &types.ValidTransaction{
		Priority:  priority,
		Requires:  verdict.Requires,
		Provides:  verdict.Provides,
		Longevity: params.Longevity,
		Propagate: true,
	}, nil
}
