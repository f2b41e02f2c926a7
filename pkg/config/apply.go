package config

import (
	"errors"
	"fmt"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
)

// Describer is implemented by controls whose settings can be extracted.
type Describer interface {
	Describe() (typ string, params map[string]any)
}

// Apply builds every control in spec and adds them to dev. A non-empty
// spec name renames the device.
//
// Apply is all or nothing: on a duplicate id, an unknown type or a build
// failure the registry is left unchanged and the controls built so far are
// closed.
func (f *Factory) Apply(dev *device.Device, spec DeviceSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	reg := dev.Controls()
	for _, c := range spec.Controls {
		if reg.Contains(c.ID) {
			return fmt.Errorf("%w: %d", device.ErrDuplicateID, c.ID)
		}
	}

	built := make([]device.Control, 0, len(spec.Controls))
	for _, c := range spec.Controls {
		ctl, err := f.Build(dev, c)
		if err != nil {
			return errors.Join(err, closeAll(built))
		}
		built = append(built, ctl)
	}

	for i, ctl := range built {
		if err := dev.AddControl(ctl); err != nil {
			for _, added := range built[:i] {
				reg.Remove(added.ID())
			}
			return errors.Join(err, closeAll(built))
		}
	}

	if spec.Name != "" {
		dev.SetName(spec.Name)
	}
	return nil
}

// NewDevice creates a device from spec.
func (f *Factory) NewDevice(spec DeviceSpec) (*device.Device, error) {
	dev := device.NewDevice(spec.ID, spec.Name)
	if err := f.Apply(dev, spec); err != nil {
		return nil, err
	}
	return dev, nil
}

// Extract returns the spec of dev. Controls that do not implement
// Describer are left out. Controls come out in ascending id order.
func Extract(dev *device.Device) DeviceSpec {
	spec := DeviceSpec{ID: dev.ID(), Name: dev.Name()}
	for _, c := range dev.Controls().Controls() {
		d, ok := c.(Describer)
		if !ok {
			continue
		}
		typ, params := d.Describe()
		spec.Controls = append(spec.Controls, ControlSpec{
			ID:     c.ID(),
			Type:   typ,
			Name:   c.Name(),
			Params: params,
		})
	}
	return spec
}

func closeAll(controls []device.Control) error {
	var errs []error
	for _, c := range controls {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
