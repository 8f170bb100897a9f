package sysaction

import (
	"errors"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tos-network/metagate/core/types"
)

// ErrCallFiltered is returned when the origin is not allowed to dispatch an
// action.
var ErrCallFiltered = errors.New("sysaction: call filtered by origin")

// Origin is the signed origin an action is dispatched under.
type Origin struct {
	Caller types.AccountID
	filter mapset.Set[ActionKind] // nil admits every kind
}

// SignedOrigin returns an origin for caller restricted to allowed. A nil set
// leaves the origin unfiltered.
func SignedOrigin(caller types.AccountID, allowed mapset.Set[ActionKind]) *Origin {
	return &Origin{Caller: caller, filter: allowed}
}

// Filter reports whether the origin may dispatch kind.
func (o *Origin) Filter(kind ActionKind) bool {
	if o.filter == nil {
		return true
	}
	return o.filter.Contains(kind)
}

// NewAllowList builds a filter set from configured action names. Blank
// names are ignored and names are matched case-insensitively. The result is
// never nil, so an empty list filters every kind; the gateway configuration
// refuses one.
func NewAllowList(kinds []string) mapset.Set[ActionKind] {
	set := mapset.NewSet[ActionKind]()
	for _, k := range kinds {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" {
			set.Add(ActionKind(k))
		}
	}
	return set
}
