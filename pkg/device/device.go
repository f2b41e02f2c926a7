package device

import (
	"fmt"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
)

// OnlineChange is raised when a device's online state flips.
type OnlineChange struct {
	DeviceID int
	Online   bool
}

// Device is an addressable hardware or software entity owning a registry
// of controls.
type Device struct {
	mu sync.RWMutex

	// id is the stable device identifier.
	id int

	// name is the human-readable device name.
	name string

	// online reports whether the device is currently reachable.
	online bool

	// controls is owned by the device and closed with it.
	controls *Registry

	onlineChanged event.Source[OnlineChange]

	closeOnce sync.Once
	closeErr  error
}

// NewDevice creates a device with an empty control registry.
func NewDevice(id int, name string) *Device {
	return &Device{
		id:       id,
		name:     name,
		controls: NewRegistry(),
	}
}

// ID returns the device id.
func (d *Device) ID() int {
	return d.id
}

// Name returns the device name.
func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// SetName sets the device name.
func (d *Device) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// IsOnline reports whether the device is online.
func (d *Device) IsOnline() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.online
}

// SetOnline updates the online state and raises OnlineChanged if it changed.
func (d *Device) SetOnline(online bool) {
	d.mu.Lock()
	if d.online == online {
		d.mu.Unlock()
		return
	}
	d.online = online
	d.mu.Unlock()

	d.onlineChanged.Raise(OnlineChange{DeviceID: d.id, Online: online})
}

// OnlineChanged returns the notification source for online changes.
func (d *Device) OnlineChanged() *event.Source[OnlineChange] {
	return &d.onlineChanged
}

// Controls returns the device's control registry.
func (d *Device) Controls() *Registry {
	return d.controls
}

// AddControl registers a control owned by this device.
// Controls whose Parent is a different device are rejected.
func (d *Device) AddControl(c Control) error {
	if p := c.Parent(); p != nil && p != d {
		return fmt.Errorf("%w: control %d belongs to device %d", ErrForeignControl, c.ID(), p.ID())
	}
	return d.controls.Add(c)
}

// Control returns the control with the given id.
func (d *Device) Control(id int) (Control, error) {
	return d.controls.Get(id)
}

// ControlInfo returns the cross-device address of the control with the given id.
func (d *Device) ControlInfo(id int) ControlInfo {
	return ControlInfo{DeviceID: d.id, ControlID: id}
}

// Close closes the registry and with it every control.
// It is safe to call Close multiple times.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.controls.Close()
		d.onlineChanged.Clear()
	})
	return d.closeErr
}

// String returns "Name (id)".
func (d *Device) String() string {
	return fmt.Sprintf("%s (%d)", d.Name(), d.id)
}
