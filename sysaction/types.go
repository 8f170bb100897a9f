// Package sysaction implements the actions a meta transaction may carry.
//
// The call data of a meta transaction is an RLP encoded SysAction envelope.
// The gateway never interprets the payload itself; it asks the Registry for
// the dispatch info of the decoded action and hands it to the registered
// handler under a caller-scoped Origin.
package sysaction

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
)

// ActionKind identifies the type of system action.
type ActionKind string

const (
	// System
	ActionSystemRemark          ActionKind = "SYSTEM_REMARK"
	ActionSystemRemarkWithEvent ActionKind = "SYSTEM_REMARK_WITH_EVENT"

	// Balances
	ActionBalancesTransfer ActionKind = "BALANCES_TRANSFER"
)

// SysAction is the envelope carried in the call data of a meta transaction.
type SysAction struct {
	Action  ActionKind
	Payload []byte
}

// RemarkPayload is the payload for SYSTEM_REMARK / SYSTEM_REMARK_WITH_EVENT.
type RemarkPayload struct {
	Remark []byte
}

// TransferPayload is the payload for BALANCES_TRANSFER.
type TransferPayload struct {
	To     types.AccountID
	Amount *uint256.Int
}

// DispatchClass groups actions by how a block accounts for them.
type DispatchClass uint8

const (
	DispatchNormal DispatchClass = iota
	DispatchOperational
	DispatchMandatory
)

func (c DispatchClass) String() string {
	switch c {
	case DispatchNormal:
		return "normal"
	case DispatchOperational:
		return "operational"
	case DispatchMandatory:
		return "mandatory"
	default:
		return "unknown"
	}
}

// DispatchInfo is the declared cost of an action, known before dispatch.
type DispatchInfo struct {
	Weight  types.Weight
	Class   DispatchClass
	PaysFee bool
}

// PostDispatchInfo is what dispatch reports back. A nil ActualWeight means
// the declared weight was consumed in full.
type PostDispatchInfo struct {
	ActualWeight *types.Weight
	PaysFee      bool
}

// CalcActualWeight returns the weight to charge for: the reported actual
// weight, never more than what info declared.
func (p PostDispatchInfo) CalcActualWeight(info DispatchInfo) types.Weight {
	if p.ActualWeight == nil {
		return info.Weight
	}
	return p.ActualWeight.Min(info.Weight)
}

// PaysFeeFor reports whether a fee is due. Either side may waive it.
func (p PostDispatchInfo) PaysFeeFor(info DispatchInfo) bool {
	return info.PaysFee && p.PaysFee
}

// Event is emitted by handlers while dispatching.
type Event interface {
	EventName() string
}

// RemarkedEvent records a remark by its hash.
type RemarkedEvent struct {
	Sender types.AccountID
	Hash   common.Hash
}

func (RemarkedEvent) EventName() string { return "System.Remarked" }

// TransferEvent records a balance transfer.
type TransferEvent struct {
	From   types.AccountID
	To     types.AccountID
	Amount *uint256.Int
}

func (TransferEvent) EventName() string { return "Balances.Transfer" }
