// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/fees"
	"github.com/tos-network/metagate/params"
	"github.com/tos-network/metagate/sysaction"
)

// DispatchOutcome is the result of running the embedded action.
type DispatchOutcome struct {
	Success  bool
	PostInfo sysaction.PostDispatchInfo
	Err      error // Dispatch error, nil on success
	Events   []sysaction.Event
}

// ExecutionResult includes all output after executing a meta transaction.
type ExecutionResult struct {
	Who          types.AccountID
	Action       sysaction.ActionKind
	Info         sysaction.DispatchInfo
	Length       uint32
	EstimatedFee *uint256.Int
	ActualFee    *uint256.Int
	Tip          *uint256.Int
	Outcome      DispatchOutcome
}

// Unwrap returns the dispatch error.
func (result *ExecutionResult) Unwrap() error {
	return result.Outcome.Err
}

// Failed returns whether the action failed. Fees are charged either way.
func (result *ExecutionResult) Failed() bool { return result.Outcome.Err != nil }

// StateTransition executes one admitted meta transaction:
//
//  1. re-derive the caller from the signature
//  2. in dry-run mode, consume the nonce and charge the service fee
//  3. decode the action and withdraw the estimated fee
//  4. dispatch under the caller's filtered origin
//  5. compute the actual fee and settle the difference
//
// In commit-on-check mode the nonce is not re-checked; admission already
// consumed it.
type StateTransition struct {
	gw *Gateway
	tx *types.MetaTransaction

	who       types.AccountID
	action    *sysaction.SysAction
	info      sysaction.DispatchInfo
	length    uint32
	tip       *uint256.Int
	estimated *uint256.Int
	paid      fees.Liquidity
}

// NewStateTransition initialises and returns a new state transition object.
func NewStateTransition(gw *Gateway, tx *types.MetaTransaction) *StateTransition {
	return &StateTransition{gw: gw, tx: tx, tip: tx.TipOrZero()}
}

// Apply executes tx. An error means execution was aborted before or while
// settling fees; a failing action is reported in the result instead.
func (g *Gateway) Apply(tx *types.MetaTransaction) (*ExecutionResult, error) {
	result, err := NewStateTransition(g, tx).TransitionDb()
	switch {
	case err != nil:
		executionAbortedMeter.Mark(1)
		log.Debug("Aborted meta transaction", "hash", tx.Hash(), "who", tx.Who.TerminalString(), "err", err)
	case result.Failed():
		executionFailedMeter.Mark(1)
	default:
		executionSucceededMeter.Mark(1)
	}
	return result, err
}

func (st *StateTransition) preCheck() error {
	if err := st.tx.SanityCheck(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	who, err := st.gw.recoverCaller(st.tx, st.gw.Digest(st.tx))
	if err != nil {
		return err
	}
	st.who = who
	if st.gw.config.Admission == params.AdmissionDryRun {
		if err := st.commitAdmission(); err != nil {
			return err
		}
	}
	action, info, length, err := st.gw.decodeAction(st.tx.CallData)
	if err != nil {
		return err
	}
	st.action, st.info, st.length = action, info, length
	return nil
}

// commitAdmission applies the effects dry-run admission left pending: the
// nonce must be the next expected one and the service fee is withdrawn.
func (st *StateTransition) commitAdmission() error {
	if _, err := st.gw.nonces.Consume(st.who, st.tx.Nonce); err != nil {
		if !errors.Is(err, ErrNonce) {
			err = fmt.Errorf("%w: %v", ErrUnexpected, err)
		}
		return err
	}
	fee, err := st.gw.fees.ChargeServiceFee(st.who)
	if err != nil {
		return err
	}
	serviceFeeCounter.Inc(int64(fee.Uint64()))
	st.gw.serviceFeeFeed.Send(ServiceFeePaidEvent{Who: st.who, Fee: fee})
	return nil
}

func (st *StateTransition) buyFee() error {
	st.estimated = st.gw.fees.Estimate(st.length, st.info, st.tip)
	paid, err := st.gw.fees.Withdraw(st.who, st.estimated, st.tip)
	if err != nil {
		return err
	}
	st.paid = paid
	return nil
}

func (st *StateTransition) dispatch() DispatchOutcome {
	ctx := &sysaction.Context{
		Origin: sysaction.SignedOrigin(st.who, st.gw.allowed),
		Ledger: st.gw.ledger,
	}
	post, err := st.gw.registry.Dispatch(ctx, st.action)
	return DispatchOutcome{Success: err == nil, PostInfo: post, Err: err, Events: ctx.Events}
}

func (st *StateTransition) refundFee(post sysaction.PostDispatchInfo) (*uint256.Int, error) {
	return st.gw.fees.Correct(st.who, st.length, st.info, post, st.tip, st.paid)
}

// TransitionDb runs the transition and returns the result.
func (st *StateTransition) TransitionDb() (*ExecutionResult, error) {
	if err := st.preCheck(); err != nil {
		return nil, err
	}
	if err := st.buyFee(); err != nil {
		return nil, err
	}
	outcome := st.dispatch()
	st.gw.outcomeFeed.Send(ActionOutcomeEvent{Who: st.who, Action: st.action.Action, Result: outcome.Err, Events: outcome.Events})

	actual, err := st.refundFee(outcome.PostInfo)
	if err != nil {
		return nil, err
	}
	st.gw.txFeeFeed.Send(TransactionFeePaidEvent{Who: st.who, ActualFee: actual, Tip: new(uint256.Int).Set(st.tip)})

	log.Trace("Executed meta transaction", "hash", st.tx.Hash(), "who", st.who.TerminalString(), "action", st.action.Action,
		"estimated", st.estimated, "actual", actual, "err", outcome.Err)
	return &ExecutionResult{
		Who:          st.who,
		Action:       st.action.Action,
		Info:         st.info,
		Length:       st.length,
		EstimatedFee: st.estimated,
		ActualFee:    actual,
		Tip:          new(uint256.Int).Set(st.tip),
		Outcome:      outcome,
	}, nil
}
