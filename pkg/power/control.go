package power

import (
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
)

// Controller is the behaviour shared by local and mirrored power controls.
type Controller interface {
	device.Control
	State() State
	PowerOn() error
	PowerOff() error
	StateChanged() *event.Source[StateChanged]
}

// Control is a device control carrying a power Machine.
type Control struct {
	*device.BaseControl
	*Machine

	sequence *Sequenced
}

// NewControl creates a power control. The config's DeviceID and ControlID
// are filled from parent and id.
func NewControl(parent *device.Device, id int, name string, actuator Actuator, cfg Config) *Control {
	base := device.NewBaseControl(parent, id, name, device.CapPower)
	info := base.Info()
	cfg.DeviceID, cfg.ControlID = info.DeviceID, info.ControlID

	c := &Control{
		BaseControl: base,
		Machine:     NewMachine(actuator, cfg),
	}
	c.OnClose(func() error {
		c.StateChanged().Clear()
		return nil
	})
	return c
}

var _ Controller = (*Control)(nil)

// Describe returns the settings type and parameters of c.
func (c *Control) Describe() (string, map[string]any) {
	if c.sequence == nil {
		return "power", nil
	}
	return "sequenced-power", map[string]any{
		"warm-up":   c.sequence.cfg.WarmUp.String(),
		"cool-down": c.sequence.cfg.CoolDown.String(),
	}
}
