package core

import (
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/sysaction"
)

// ServiceFeePaidEvent is posted when admission withdraws the service fee.
type ServiceFeePaidEvent struct {
	Who types.AccountID
	Fee *uint256.Int
}

// TransactionFeePaidEvent is posted once execution settled the actual fee.
type TransactionFeePaidEvent struct {
	Who       types.AccountID
	ActualFee *uint256.Int
	Tip       *uint256.Int
}

// ActionOutcomeEvent is posted after dispatch with its result. Result is nil
// when the action succeeded.
type ActionOutcomeEvent struct {
	Who    types.AccountID
	Action sysaction.ActionKind
	Result error
	Events []sysaction.Event
}
