package proxy

import (
	"log/slog"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
)

// MirrorDevice is a device whose state follows a remote DeviceNode. Its
// registry holds mirror controls; it is the root node of the mirror-side
// session.
type MirrorDevice struct {
	*device.Device
	cmdtree.BaseNode

	logger *slog.Logger
}

// NewMirrorDevice creates an empty mirror. logger may be nil.
func NewMirrorDevice(id int, name string, logger *slog.Logger) *MirrorDevice {
	return &MirrorDevice{
		Device: device.NewDevice(id, name),
		logger: logger,
	}
}

// Declare reads Name and Online, subscribes to OnlineChanged and asks for
// every registered mirror control.
func (d *MirrorDevice) Declare() *cmdtree.CommandNode {
	cmd := cmdtree.NewCommand("").
		GetProperty(PropName, PropOnline).
		Subscribe(EventOnlineChanged)
	for _, id := range d.Controls().IDs() {
		cmd.AddChild(GroupControls, cmdtree.IntKey(id), nil)
	}
	return cmd
}

// HandleCommand applies pushed Name and Online values.
func (d *MirrorDevice) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	for _, p := range cmd.Properties {
		if p.Op == cmdtree.PropertyChanged {
			d.apply(p.Name, p.Value)
		}
	}
	for _, e := range cmd.Events {
		if e.Op == cmdtree.EventRaised && e.Name == EventOnlineChanged {
			d.apply(PropOnline, e.Payload)
		}
	}
	return nil
}

// HandleResult applies read values.
func (d *MirrorDevice) HandleResult(res *cmdtree.ResultNode) {
	for _, p := range res.Properties {
		d.apply(p.Name, p.Value)
	}
}

func (d *MirrorDevice) apply(name string, value any) {
	switch name {
	case PropName:
		if s, err := cmdtree.Text(value); err == nil {
			d.SetName(s)
			return
		}
	case PropOnline:
		if b, err := cmdtree.Bool(value); err == nil {
			d.SetOnline(b)
			return
		}
	}
	unhandled(d.logger, "property", name)
}

// ResolveChild returns the mirror control registered under Controls[id].
// A registered control that is not a node is returned as is and rejected
// by the session.
func (d *MirrorDevice) ResolveChild(group string, key cmdtree.Key) (any, error) {
	if group != GroupControls {
		return nil, cmdtree.ErrUnknownGroup
	}
	id, ok := key.Int()
	if !ok {
		return nil, cmdtree.ErrUnknownKey
	}
	c, ok := d.Controls().TryGet(id)
	if !ok {
		return nil, cmdtree.ErrUnknownKey
	}
	return c, nil
}

var (
	_ cmdtree.Node          = (*MirrorDevice)(nil)
	_ cmdtree.GroupResolver = (*MirrorDevice)(nil)
)
