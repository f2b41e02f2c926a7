package proxy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
)

// PowerNode exposes a power control.
//
// PowerState is read as the integer state value. The PowerStateChanged
// payload is [state, expected duration in ms].
type PowerNode struct {
	cmdtree.BaseNode

	ctl    power.Controller
	logger *slog.Logger
	subs   subscriptions

	mu     sync.Mutex
	handle event.Handle
}

// NewPowerNode wraps ctl. logger may be nil.
func NewPowerNode(ctl power.Controller, logger *slog.Logger) *PowerNode {
	return &PowerNode{ctl: ctl, logger: logger}
}

// Attach starts pushing state changes.
func (n *PowerNode) Attach(e cmdtree.Emitter) {
	n.BaseNode.Attach(e)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle == 0 {
		n.handle = n.ctl.StateChanged().Subscribe(n.stateChanged)
	}
}

// Detach stops pushing and forgets subscriptions.
func (n *PowerNode) Detach() {
	n.mu.Lock()
	h := n.handle
	n.handle = 0
	n.mu.Unlock()

	if h != 0 {
		n.ctl.StateChanged().Unsubscribe(h)
	}
	n.subs.reset()
	n.BaseNode.Detach()
}

func (n *PowerNode) stateChanged(c power.StateChanged) {
	cmd := cmdtree.NewCommand("").ChangedProperty(PropPowerState, int(c.New))
	if n.subs.has(EventPowerStateChanged) {
		cmd.Raise(EventPowerStateChanged, []any{int(c.New), c.ExpectedDuration.Milliseconds()})
	}
	push(&n.BaseNode, n.logger, cmd)
}

// HandleCommand runs PowerOn/PowerOff, then answers PowerState reads.
func (n *PowerNode) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	res := cmdtree.NewResult("")
	for _, e := range cmd.Events {
		if e.Name != EventPowerStateChanged || !n.subs.apply(e) {
			unhandled(n.logger, "event", e.Name)
		}
	}
	for _, m := range cmd.Methods {
		switch m.Name {
		case MethodPowerOn:
			res.AddMethodResult(m.Name, nil, n.ctl.PowerOn())
		case MethodPowerOff:
			res.AddMethodResult(m.Name, nil, n.ctl.PowerOff())
		default:
			res.AddMethodResult(m.Name, nil, fmt.Errorf("%w: %s", ErrUnknownMember, m.Name))
		}
	}
	for _, p := range cmd.Properties {
		if p.Name == PropPowerState && p.Op == cmdtree.PropertyGet {
			res.AddProperty(PropPowerState, int(n.ctl.State()))
			continue
		}
		unhandled(n.logger, "property", p.Name)
	}
	return res
}

var _ cmdtree.Node = (*PowerNode)(nil)
