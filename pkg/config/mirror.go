package config

import (
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/proxy"
)

// MirrorFactory returns a factory building proxy controls for a remote
// device described by the same file as the host. Sequenced power mirrors
// as plain power; the remote side runs the phases.
func MirrorFactory(opts Options) *Factory {
	f := NewFactory(opts)
	f.Register(TypePower, buildMirrorPower)
	f.Register(TypeSequencedPower, buildMirrorPower)
	f.Register(TypeVolume, buildMirrorVolume)
	return f
}

func buildMirrorPower(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error) {
	return proxy.NewMirrorPower(dev, spec.ID, spec.Name, opts.Logger), nil
}

func buildMirrorVolume(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error) {
	step, err := spec.Float("step", 0)
	if err != nil {
		return nil, err
	}
	mute, err := spec.Bool("mute", true)
	if err != nil {
		return nil, err
	}
	return proxy.NewMirrorVolume(dev, spec.ID, spec.Name, proxy.MirrorVolumeConfig{
		Mute:   mute,
		Step:   step,
		Logger: opts.Logger,
	}), nil
}
