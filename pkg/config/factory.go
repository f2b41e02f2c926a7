package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/ramp"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

// Control types built by DefaultFactory.
const (
	TypePower          = "power"
	TypeSequencedPower = "sequenced-power"
	TypeVolume         = "volume"
)

// Options carries the shared dependencies handed to every FactoryFunc.
type Options struct {
	// Logger is passed to built controls. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger is passed to built controls.
	ProtocolLogger log.Logger

	// Scheduler arms sequencing timers. Nil uses ramp.SystemScheduler.
	Scheduler ramp.Scheduler
}

// FactoryFunc builds one control for dev. It must not add the control to
// the registry.
type FactoryFunc func(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error)

// Factory maps control types to their builders.
type Factory struct {
	opts Options

	mu       sync.RWMutex
	builders map[string]FactoryFunc
}

// NewFactory returns a factory with no types registered.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts, builders: make(map[string]FactoryFunc)}
}

// DefaultFactory returns a factory building local power, sequenced-power
// and volume controls.
func DefaultFactory(opts Options) *Factory {
	f := NewFactory(opts)
	f.Register(TypePower, buildPower)
	f.Register(TypeSequencedPower, buildSequencedPower)
	f.Register(TypeVolume, buildVolume)
	return f
}

// Register installs fn for typ, replacing any previous builder.
func (f *Factory) Register(typ string, fn FactoryFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[typ] = fn
}

// Types returns the registered types in sorted order.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Build creates the control described by spec.
func (f *Factory) Build(dev *device.Device, spec ControlSpec) (device.Control, error) {
	f.mu.RLock()
	fn, ok := f.builders[spec.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (control %d)", ErrUnknownType, spec.Type, spec.ID)
	}
	return fn(dev, spec, f.opts)
}

func powerConfig(opts Options) power.Config {
	return power.Config{Logger: opts.Logger, ProtocolLogger: opts.ProtocolLogger}
}

func buildPower(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error) {
	return power.NewControl(dev, spec.ID, spec.Name, nil, powerConfig(opts)), nil
}

func buildSequencedPower(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error) {
	warmUp, err := spec.Duration("warm-up", 0)
	if err != nil {
		return nil, err
	}
	coolDown, err := spec.Duration("cool-down", 0)
	if err != nil {
		return nil, err
	}
	if warmUp < 0 || coolDown < 0 {
		return nil, paramError(spec, "warm-up/cool-down", fmt.Errorf("negative duration"))
	}

	seq := power.SequenceConfig{WarmUp: warmUp, CoolDown: coolDown, Scheduler: opts.Scheduler}
	return power.NewSequencedControl(dev, spec.ID, spec.Name, nil, seq, powerConfig(opts)), nil
}

func buildVolume(dev *device.Device, spec ControlSpec, opts Options) (device.Control, error) {
	cfg := volume.DefaultConfig()
	cfg.Logger = opts.Logger
	cfg.ProtocolLogger = opts.ProtocolLogger

	var err error
	if cfg.Min, err = spec.Float("min", cfg.Min); err != nil {
		return nil, err
	}
	if cfg.Max, err = spec.Float("max", cfg.Max); err != nil {
		return nil, err
	}
	if cfg.SafetyMax, err = spec.Float("safety-max", 0); err != nil {
		return nil, err
	}
	if cfg.Step, err = spec.Float("step", cfg.Step); err != nil {
		return nil, err
	}
	if cfg.Initial, err = spec.Float("initial", cfg.Min); err != nil {
		return nil, err
	}
	if cfg.Mute, err = spec.Bool("mute", cfg.Mute); err != nil {
		return nil, err
	}

	c, err := volume.NewControl(dev, spec.ID, spec.Name, nil, cfg)
	if err != nil {
		return nil, paramError(spec, "min/max", err)
	}
	return c, nil
}
