package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

// MirrorVolumeConfig configures a MirrorVolume.
type MirrorVolumeConfig struct {
	// Mute adds the volume-mute capability.
	Mute bool

	// Step is reported by DefaultStep. Zero uses volume.DefaultStep.
	Step float64

	// Logger receives call failures. Nil disables logging.
	Logger *slog.Logger
}

// MirrorVolume is a volume control backed by a remote VolumeNode. Setters
// and steps are sent as method calls; the level changes when the remote
// side reports it. It implements ramp.LevelStepper, so a ramp can drive a
// remote volume.
type MirrorVolume struct {
	*device.BaseControl
	cmdtree.BaseNode

	cfg MirrorVolumeConfig

	mu      sync.RWMutex
	raw     float64
	level   float64
	muted   bool
	lastErr error

	volumeChanged event.Source[volume.VolumeChanged]
	muteChanged   event.Source[volume.MuteChanged]
}

// NewMirrorVolume creates a mirror volume control.
func NewMirrorVolume(parent *device.Device, id int, name string, cfg MirrorVolumeConfig) *MirrorVolume {
	if cfg.Step == 0 {
		cfg.Step = volume.DefaultStep
	}
	caps := []device.Capability{device.CapVolumeRaw, device.CapVolumeLevel}
	if cfg.Mute {
		caps = append(caps, device.CapVolumeMute)
	}

	m := &MirrorVolume{
		BaseControl: device.NewBaseControl(parent, id, name, caps...),
		cfg:         cfg,
	}
	m.OnClose(func() error {
		m.volumeChanged.Clear()
		m.muteChanged.Clear()
		return nil
	})
	return m
}

// Describe returns the settings type and parameters of m.
func (m *MirrorVolume) Describe() (string, map[string]any) {
	return "volume", map[string]any{"step": m.cfg.Step, "mute": m.cfg.Mute}
}

// VolumeRaw returns the last reported raw level.
func (m *MirrorVolume) VolumeRaw() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw
}

// Level returns the last reported 0..1 position.
func (m *MirrorVolume) Level() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// IsMuted returns the last reported mute state.
func (m *MirrorVolume) IsMuted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted
}

// LastError returns the failure reported for the last remote call, if any.
func (m *MirrorVolume) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// DefaultStep returns the configured step.
func (m *MirrorVolume) DefaultStep() float64 { return m.cfg.Step }

// SetVolumeRaw asks the remote control for a raw level.
func (m *MirrorVolume) SetVolumeRaw(raw float64) error {
	return m.call(MethodSetVolumeRaw, raw)
}

// SetLevel asks the remote control for a 0..1 position.
func (m *MirrorVolume) SetLevel(level float64) error {
	return m.call(MethodSetVolumeLevel, level)
}

// IncrementBy raises the remote level by step.
func (m *MirrorVolume) IncrementBy(step float64) error {
	return m.call(MethodVolumeIncrement, step)
}

// DecrementBy lowers the remote level by step.
func (m *MirrorVolume) DecrementBy(step float64) error {
	return m.call(MethodVolumeDecrement, step)
}

// Increment raises the remote level by the remote default step.
func (m *MirrorVolume) Increment() error {
	return m.call(MethodVolumeIncrement)
}

// Decrement lowers the remote level by the remote default step.
func (m *MirrorVolume) Decrement() error {
	return m.call(MethodVolumeDecrement)
}

// SetMuted asks the remote control to mute or unmute.
func (m *MirrorVolume) SetMuted(muted bool) error {
	if !m.cfg.Mute {
		return volume.ErrMuteNotSupported
	}
	return m.call(MethodSetMuted, muted)
}

// ToggleMute asks the remote control to invert its mute state.
func (m *MirrorVolume) ToggleMute() error {
	if !m.cfg.Mute {
		return volume.ErrMuteNotSupported
	}
	return m.call(MethodToggleMute)
}

// VolumeChanged returns the level notification source.
func (m *MirrorVolume) VolumeChanged() *event.Source[volume.VolumeChanged] {
	return &m.volumeChanged
}

// MuteChanged returns the mute notification source.
func (m *MirrorVolume) MuteChanged() *event.Source[volume.MuteChanged] {
	return &m.muteChanged
}

func (m *MirrorVolume) call(method string, args ...any) error {
	return m.Emit(context.Background(), cmdtree.NewCommand("").Call(method, args...))
}

// Declare reads the level, and the mute state when supported.
func (m *MirrorVolume) Declare() *cmdtree.CommandNode {
	cmd := cmdtree.NewCommand("").GetProperty(PropVolumeRaw, PropVolumeLevel)
	if m.cfg.Mute {
		cmd.GetProperty(PropIsMuted)
	}
	return cmd
}

// HandleCommand applies pushed values.
func (m *MirrorVolume) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	var values []cmdtree.PropertyValue
	for _, p := range cmd.Properties {
		if p.Op == cmdtree.PropertyChanged {
			values = append(values, cmdtree.PropertyValue{Name: p.Name, Value: p.Value})
		}
	}
	m.apply(values)
	return nil
}

// HandleResult applies read values and records call failures.
func (m *MirrorVolume) HandleResult(res *cmdtree.ResultNode) {
	m.apply(res.Properties)
	for _, r := range res.Methods {
		var err error
		if r.Error != "" {
			err = fmt.Errorf("%w: %s: %s", ErrRemote, r.Name, r.Error)
			if m.cfg.Logger != nil {
				m.cfg.Logger.Warn("remote volume call failed", "method", r.Name, "error", r.Error)
			}
		}
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
	}
}

// apply folds values into the state and raises at most one notification
// per kind.
func (m *MirrorVolume) apply(values []cmdtree.PropertyValue) {
	m.mu.Lock()
	raw, level, muted := m.raw, m.level, m.muted
	for _, p := range values {
		switch p.Name {
		case PropVolumeRaw:
			if v, err := cmdtree.Float(p.Value); err == nil {
				raw = v
				continue
			}
		case PropVolumeLevel:
			if v, err := cmdtree.Float(p.Value); err == nil {
				level = v
				continue
			}
		case PropIsMuted:
			if v, err := cmdtree.Bool(p.Value); err == nil {
				muted = v
				continue
			}
		}
		unhandled(m.cfg.Logger, "property", p.Name)
	}
	volChanged := raw != m.raw || level != m.level
	muteChanged := muted != m.muted
	m.raw, m.level, m.muted = raw, level, muted
	m.mu.Unlock()

	if volChanged {
		m.volumeChanged.Raise(volume.VolumeChanged{Raw: raw, Level: level})
	}
	if muteChanged {
		m.muteChanged.Raise(volume.MuteChanged{Muted: muted})
	}
}

var (
	_ volume.Controller = (*MirrorVolume)(nil)
	_ cmdtree.Node      = (*MirrorVolume)(nil)
)
