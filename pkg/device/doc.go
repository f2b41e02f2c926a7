// Package device implements the device and control model.
//
// # Model
//
// A Device owns exactly one Registry. The registry holds the device's
// Controls, each identified by an integer id that is unique within the
// device (not globally):
//
//	Device 3 ("Projector")
//	├── Control 1  [power]
//	└── Control 2  [volume-raw volume-level volume-mute]
//
// A control is addressed across devices by ControlInfo, the ordered
// (DeviceID, ControlID) pair.
//
// # Capabilities
//
// Controls declare the behaviours they support as explicit Capability tags.
// The registry captures the tags when a control is added and indexes the
// control under each of them, so lookups such as "the first power control"
// never depend on the control's concrete type:
//
//	pwr, err := device.FirstAs[*power.Control](dev.Controls(), device.CapPower)
//
// # Lifecycle
//
// Devices and controls are created while configuration is applied and are
// released together: Device.Close closes the registry, which closes every
// control it still holds.
package device
