package sysaction

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/params"
	"golang.org/x/crypto/blake2b"
)

// SystemHandler serves the remark actions.
type SystemHandler struct{}

func (SystemHandler) CanHandle(kind ActionKind) bool {
	return kind == ActionSystemRemark || kind == ActionSystemRemarkWithEvent
}

func (SystemHandler) Info(sa *SysAction) (DispatchInfo, error) {
	var p RemarkPayload
	if err := DecodePayload(sa, &p); err != nil {
		return DispatchInfo{}, err
	}
	ref := params.RemarkRefTime + params.RemarkRefTimePerByte*uint64(len(p.Remark))
	if sa.Action == ActionSystemRemarkWithEvent {
		ref += params.RemarkEventRefTimeAdd
	}
	return DispatchInfo{Weight: types.NewWeight(ref, 0), Class: DispatchNormal, PaysFee: true}, nil
}

func (SystemHandler) Handle(ctx *Context, sa *SysAction) (PostDispatchInfo, error) {
	var p RemarkPayload
	if err := DecodePayload(sa, &p); err != nil {
		return PostDispatchInfo{PaysFee: true}, err
	}
	if sa.Action == ActionSystemRemarkWithEvent {
		ctx.Emit(RemarkedEvent{Sender: ctx.Origin.Caller, Hash: common.Hash(blake2b.Sum256(p.Remark))})
	}
	return PostDispatchInfo{PaysFee: true}, nil
}

// BalancesHandler serves BALANCES_TRANSFER.
type BalancesHandler struct{}

var errNoLedger = errors.New("sysaction: no ledger in context")

func (BalancesHandler) CanHandle(kind ActionKind) bool { return kind == ActionBalancesTransfer }

func (BalancesHandler) Info(sa *SysAction) (DispatchInfo, error) {
	var p TransferPayload
	if err := DecodePayload(sa, &p); err != nil {
		return DispatchInfo{}, err
	}
	return DispatchInfo{
		Weight:  types.NewWeight(params.TransferRefTime, params.TransferProofSize),
		Class:   DispatchNormal,
		PaysFee: true,
	}, nil
}

func (BalancesHandler) Handle(ctx *Context, sa *SysAction) (PostDispatchInfo, error) {
	var p TransferPayload
	if err := DecodePayload(sa, &p); err != nil {
		return PostDispatchInfo{PaysFee: true}, err
	}
	if ctx.Ledger == nil {
		return PostDispatchInfo{PaysFee: true}, errNoLedger
	}
	if p.Amount == nil || p.Amount.IsZero() {
		// Nothing moves; only the base of the declared weight is consumed.
		actual := types.NewWeight(params.TransferRefTime/2, 0)
		return PostDispatchInfo{ActualWeight: &actual, PaysFee: true}, nil
	}
	from := ctx.Origin.Caller
	if err := ctx.Ledger.Transfer(from, p.To, p.Amount, balances.KeepAlive); err != nil {
		return PostDispatchInfo{PaysFee: true}, fmt.Errorf("transfer %s -> %s: %w", from.Hex(), p.To.Hex(), err)
	}
	ctx.Emit(TransferEvent{From: from, To: p.To, Amount: p.Amount})
	return PostDispatchInfo{PaysFee: true}, nil
}
