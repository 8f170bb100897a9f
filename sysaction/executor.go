package sysaction

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/metagate/balances"
)

// ErrUnknownAction is returned for an action no handler claims.
var ErrUnknownAction = fmt.Errorf("%w: unknown action", ErrInvalidSysAction)

// Context carries information available to a system-action handler.
type Context struct {
	Origin *Origin
	Ledger balances.Ledger
	Events []Event
}

// Emit records an event raised by the running handler.
func (c *Context) Emit(ev Event) { c.Events = append(c.Events, ev) }

// Handler is implemented by the action sub-systems.
type Handler interface {
	CanHandle(kind ActionKind) bool
	// Info returns the declared cost of sa. It must not touch state.
	Info(sa *SysAction) (DispatchInfo, error)
	Handle(ctx *Context, sa *SysAction) (PostDispatchInfo, error)
}

// Registry holds registered handlers.
type Registry struct{ handlers []Handler }

// NewRegistry creates a registry with the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{handlers: handlers}
}

// DefaultRegistry returns a registry with the built-in system and balances
// handlers.
func DefaultRegistry() *Registry {
	return NewRegistry(SystemHandler{}, BalancesHandler{})
}

// Register adds a handler to the registry.
func (r *Registry) Register(h Handler) { r.handlers = append(r.handlers, h) }

func (r *Registry) handler(kind ActionKind) (Handler, error) {
	for _, h := range r.handlers {
		if h.CanHandle(kind) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
}

// Decode parses call data and checks that a handler exists for it.
func (r *Registry) Decode(data []byte) (*SysAction, error) {
	sa, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if _, err := r.handler(sa.Action); err != nil {
		return nil, err
	}
	return sa, nil
}

// Info returns the declared dispatch info of sa.
func (r *Registry) Info(sa *SysAction) (DispatchInfo, error) {
	h, err := r.handler(sa.Action)
	if err != nil {
		return DispatchInfo{}, err
	}
	return h.Info(sa)
}

// EncodedSize returns the length of the canonical encoding of sa.
func (r *Registry) EncodedSize(sa *SysAction) (uint32, error) {
	enc, err := Encode(sa)
	if err != nil {
		return 0, err
	}
	return uint32(len(enc)), nil
}

// Dispatch runs sa under ctx.Origin. A filtered call consumes its declared
// weight and returns ErrCallFiltered.
func (r *Registry) Dispatch(ctx *Context, sa *SysAction) (PostDispatchInfo, error) {
	h, err := r.handler(sa.Action)
	if err != nil {
		return PostDispatchInfo{PaysFee: true}, err
	}
	if ctx.Origin == nil {
		return PostDispatchInfo{PaysFee: true}, errors.New("sysaction: missing origin")
	}
	if !ctx.Origin.Filter(sa.Action) {
		log.Debug("Filtered system action", "who", ctx.Origin.Caller.TerminalString(), "action", sa.Action)
		return PostDispatchInfo{PaysFee: true}, fmt.Errorf("%w: %s", ErrCallFiltered, sa.Action)
	}
	return h.Handle(ctx, sa)
}
