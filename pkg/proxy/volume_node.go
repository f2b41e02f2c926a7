package proxy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

// VolumeNode exposes a volume control. While bound it pushes VolumeRaw and
// VolumeLevel together on every level change, and IsMuted on mute changes.
type VolumeNode struct {
	cmdtree.BaseNode

	ctl    volume.Controller
	mute   bool
	logger *slog.Logger

	mu         sync.Mutex
	volHandle  event.Handle
	muteHandle event.Handle
}

// NewVolumeNode wraps ctl. logger may be nil.
func NewVolumeNode(ctl volume.Controller, logger *slog.Logger) *VolumeNode {
	return &VolumeNode{
		ctl:    ctl,
		mute:   device.HasCapability(ctl.Capabilities(), device.CapVolumeMute),
		logger: logger,
	}
}

// Attach starts pushing changes. Attaching twice subscribes once.
func (n *VolumeNode) Attach(e cmdtree.Emitter) {
	n.BaseNode.Attach(e)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.volHandle == 0 {
		n.volHandle = n.ctl.VolumeChanged().Subscribe(n.volumeChanged)
	}
	if n.mute && n.muteHandle == 0 {
		n.muteHandle = n.ctl.MuteChanged().Subscribe(n.muteChanged)
	}
}

// Detach stops pushing.
func (n *VolumeNode) Detach() {
	n.mu.Lock()
	vh, mh := n.volHandle, n.muteHandle
	n.volHandle, n.muteHandle = 0, 0
	n.mu.Unlock()

	if vh != 0 {
		n.ctl.VolumeChanged().Unsubscribe(vh)
	}
	if mh != 0 {
		n.ctl.MuteChanged().Unsubscribe(mh)
	}
	n.BaseNode.Detach()
}

func (n *VolumeNode) volumeChanged(c volume.VolumeChanged) {
	push(&n.BaseNode, n.logger, cmdtree.NewCommand("").
		ChangedProperty(PropVolumeRaw, c.Raw).
		ChangedProperty(PropVolumeLevel, c.Level))
}

func (n *VolumeNode) muteChanged(c volume.MuteChanged) {
	push(&n.BaseNode, n.logger, cmdtree.NewCommand("").ChangedProperty(PropIsMuted, c.Muted))
}

// HandleCommand applies writes and runs volume methods, then answers reads
// so a read sees the writes made by the same command.
func (n *VolumeNode) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	res := cmdtree.NewResult("")
	var reads []string
	for _, p := range cmd.Properties {
		switch p.Op {
		case cmdtree.PropertyGet:
			reads = append(reads, p.Name)
		case cmdtree.PropertySet:
			if err := n.set(p.Name, p.Value); err != nil {
				if n.logger != nil {
					n.logger.Warn("volume property write failed", "property", p.Name, "error", err)
				}
				continue
			}
			reads = append(reads, p.Name)
		default:
			unhandled(n.logger, "property", p.Name)
		}
	}
	for _, e := range cmd.Events {
		unhandled(n.logger, "event", e.Name)
	}
	for _, m := range cmd.Methods {
		res.AddMethodResult(m.Name, nil, n.call(m))
	}
	for _, name := range reads {
		n.get(res, name)
	}
	return res
}

func (n *VolumeNode) get(res *cmdtree.ResultNode, name string) {
	switch {
	case name == PropVolumeRaw:
		res.AddProperty(name, n.ctl.VolumeRaw())
	case name == PropVolumeLevel:
		res.AddProperty(name, n.ctl.Level())
	case name == PropIsMuted && n.mute:
		res.AddProperty(name, n.ctl.IsMuted())
	default:
		unhandled(n.logger, "property", name)
	}
}

func (n *VolumeNode) set(name string, value any) error {
	switch name {
	case PropVolumeRaw:
		v, err := cmdtree.Float(value)
		if err != nil {
			return err
		}
		return n.ctl.SetVolumeRaw(v)
	case PropVolumeLevel:
		v, err := cmdtree.Float(value)
		if err != nil {
			return err
		}
		return n.ctl.SetLevel(v)
	case PropIsMuted:
		v, err := cmdtree.Bool(value)
		if err != nil {
			return err
		}
		return n.ctl.SetMuted(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
}

func (n *VolumeNode) call(m cmdtree.MethodCall) error {
	switch m.Name {
	case MethodSetVolumeRaw:
		return n.setArg(m, PropVolumeRaw)
	case MethodSetVolumeLevel:
		return n.setArg(m, PropVolumeLevel)
	case MethodSetMuted:
		return n.setArg(m, PropIsMuted)
	case MethodToggleMute:
		return n.ctl.ToggleMute()
	case MethodVolumeIncrement, MethodVolumeDecrement:
		up := m.Name == MethodVolumeIncrement
		if len(m.Args) == 0 {
			if up {
				return n.ctl.Increment()
			}
			return n.ctl.Decrement()
		}
		step, err := cmdtree.Float(m.Args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		if up {
			return n.ctl.IncrementBy(step)
		}
		return n.ctl.DecrementBy(step)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMember, m.Name)
	}
}

func (n *VolumeNode) setArg(m cmdtree.MethodCall, prop string) error {
	v, err := cmdtree.Arg(m.Name, m.Args, 0)
	if err != nil {
		return err
	}
	if err := n.set(prop, v); err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	return nil
}

var _ cmdtree.Node = (*VolumeNode)(nil)
