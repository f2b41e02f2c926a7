package device

import (
	"errors"
	"sync"
)

// Control is a unit of device functionality addressed by an id that is
// unique within its owning device.
type Control interface {
	// ID returns the control id within the parent device.
	ID() int

	// Name returns the human-readable control name.
	Name() string

	// Parent returns the owning device. The reference is not owning.
	Parent() *Device

	// Capabilities returns the capability tags the control declares.
	Capabilities() []Capability

	// Close releases the control's resources. It must be idempotent.
	Close() error
}

// BaseControl is the embeddable part shared by all controls.
// Concrete controls embed *BaseControl and add their behaviour.
type BaseControl struct {
	id     int
	name   string
	parent *Device
	caps   []Capability

	mu      sync.Mutex
	closed  bool
	closers []func() error
}

// NewBaseControl creates the shared part of a control.
// The capability list is copied; later changes by the caller are not seen.
func NewBaseControl(parent *Device, id int, name string, caps ...Capability) *BaseControl {
	return &BaseControl{
		id:     id,
		name:   name,
		parent: parent,
		caps:   normalizeCapabilities(caps),
	}
}

// ID returns the control id.
func (c *BaseControl) ID() int {
	return c.id
}

// Name returns the control name.
func (c *BaseControl) Name() string {
	return c.name
}

// Parent returns the owning device (may be nil for detached controls).
func (c *BaseControl) Parent() *Device {
	return c.parent
}

// Capabilities returns a copy of the declared capability tags.
func (c *BaseControl) Capabilities() []Capability {
	out := make([]Capability, len(c.caps))
	copy(out, c.caps)
	return out
}

// Info returns the cross-device address of the control.
// A control without parent reports device id 0.
func (c *BaseControl) Info() ControlInfo {
	info := ControlInfo{ControlID: c.id}
	if c.parent != nil {
		info.DeviceID = c.parent.ID()
	}
	return info
}

// OnClose registers fn to run when the control is closed.
// Functions run in reverse registration order.
func (c *BaseControl) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// IsClosed reports whether Close has been called.
func (c *BaseControl) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close runs the registered close functions once.
func (c *BaseControl) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
