package proxy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

// DeviceNode exposes a device as the root of a command tree.
type DeviceNode struct {
	cmdtree.BaseNode

	dev    *device.Device
	logger *slog.Logger
	subs   subscriptions

	mu     sync.Mutex
	handle event.Handle
	nodes  map[int]controlNode
}

type controlNode struct {
	control device.Control
	node    cmdtree.Node
}

// NewDeviceNode wraps dev. logger may be nil.
func NewDeviceNode(dev *device.Device, logger *slog.Logger) *DeviceNode {
	return &DeviceNode{
		dev:    dev,
		logger: logger,
		nodes:  make(map[int]controlNode),
	}
}

// Device returns the wrapped device.
func (n *DeviceNode) Device() *device.Device {
	return n.dev
}

// Attach starts pushing online changes.
func (n *DeviceNode) Attach(e cmdtree.Emitter) {
	n.BaseNode.Attach(e)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle == 0 {
		n.handle = n.dev.OnlineChanged().Subscribe(n.onlineChanged)
	}
}

// Detach stops pushing and forgets subscriptions.
func (n *DeviceNode) Detach() {
	n.mu.Lock()
	h := n.handle
	n.handle = 0
	n.mu.Unlock()

	if h != 0 {
		n.dev.OnlineChanged().Unsubscribe(h)
	}
	n.subs.reset()
	n.BaseNode.Detach()
}

func (n *DeviceNode) onlineChanged(c device.OnlineChange) {
	cmd := cmdtree.NewCommand("").ChangedProperty(PropOnline, c.Online)
	if n.subs.has(EventOnlineChanged) {
		cmd.Raise(EventOnlineChanged, c.Online)
	}
	push(&n.BaseNode, n.logger, cmd)
}

// HandleCommand answers Name and Online reads and OnlineChanged
// subscriptions.
func (n *DeviceNode) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	res := cmdtree.NewResult("")
	for _, p := range cmd.Properties {
		switch {
		case p.Op != cmdtree.PropertyGet:
			unhandled(n.logger, "property", p.Name)
		case p.Name == PropName:
			res.AddProperty(PropName, n.dev.Name())
		case p.Name == PropOnline:
			res.AddProperty(PropOnline, n.dev.IsOnline())
		default:
			unhandled(n.logger, "property", p.Name)
		}
	}
	for _, e := range cmd.Events {
		if e.Name != EventOnlineChanged || !n.subs.apply(e) {
			unhandled(n.logger, "event", e.Name)
		}
	}
	for _, m := range cmd.Methods {
		res.AddMethodResult(m.Name, nil, fmt.Errorf("%w: %s", ErrUnknownMember, m.Name))
	}
	return res
}

// ResolveChild resolves Controls[id] to the node of the registered control.
// Nodes are cached per control so repeated resolution yields the same node.
func (n *DeviceNode) ResolveChild(group string, key cmdtree.Key) (any, error) {
	if group != GroupControls {
		return nil, fmt.Errorf("%w: %s", cmdtree.ErrUnknownGroup, group)
	}
	id, ok := key.Int()
	if !ok {
		return nil, fmt.Errorf("%w: %s", cmdtree.ErrUnknownKey, key)
	}
	c, ok := n.dev.Controls().TryGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: no control %d on %s", cmdtree.ErrUnknownKey, id, n.dev)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if cached, ok := n.nodes[id]; ok && cached.control == c {
		return cached.node, nil
	}
	node, err := NewControlNode(c, n.logger)
	if err != nil {
		return nil, err
	}
	n.nodes[id] = controlNode{control: c, node: node}
	return node, nil
}

// NewControlNode returns the node exposing c, chosen by capability.
// Controls without a remote representation yield cmdtree.ErrWrongKind.
func NewControlNode(c device.Control, logger *slog.Logger) (cmdtree.Node, error) {
	caps := c.Capabilities()

	if device.HasCapability(caps, device.CapPower) {
		if p, ok := c.(power.Controller); ok {
			return NewPowerNode(p, logger), nil
		}
	}
	if device.HasCapability(caps, device.CapVolumeRaw) {
		if v, ok := c.(volume.Controller); ok {
			return NewVolumeNode(v, logger), nil
		}
	}
	return nil, fmt.Errorf("%w: control %d %v is not remote-capable", cmdtree.ErrWrongKind, c.ID(), caps)
}

var (
	_ cmdtree.Node          = (*DeviceNode)(nil)
	_ cmdtree.GroupResolver = (*DeviceNode)(nil)
)
