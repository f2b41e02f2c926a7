package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
)

// MirrorPower is a power control backed by a remote PowerNode.
// PowerOn and PowerOff send method calls; the state changes when the
// remote side reports it.
type MirrorPower struct {
	*device.BaseControl
	cmdtree.BaseNode

	logger *slog.Logger

	mu      sync.RWMutex
	state   power.State
	lastErr error
	changed event.Source[power.StateChanged]
}

// NewMirrorPower creates a mirror power control. logger may be nil.
func NewMirrorPower(parent *device.Device, id int, name string, logger *slog.Logger) *MirrorPower {
	m := &MirrorPower{
		BaseControl: device.NewBaseControl(parent, id, name, device.CapPower),
		logger:      logger,
	}
	m.OnClose(func() error {
		m.changed.Clear()
		return nil
	})
	return m
}

// Describe returns the settings type of m.
func (m *MirrorPower) Describe() (string, map[string]any) {
	return "power", nil
}

// State returns the last reported state.
func (m *MirrorPower) State() power.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// StateChanged returns the transition notification source.
func (m *MirrorPower) StateChanged() *event.Source[power.StateChanged] {
	return &m.changed
}

// LastError returns the failure reported for the last remote call, if any.
func (m *MirrorPower) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// PowerOn asks the remote control to power on.
func (m *MirrorPower) PowerOn() error {
	return m.Emit(context.Background(), cmdtree.NewCommand("").Call(MethodPowerOn))
}

// PowerOff asks the remote control to power off.
func (m *MirrorPower) PowerOff() error {
	return m.Emit(context.Background(), cmdtree.NewCommand("").Call(MethodPowerOff))
}

// Declare reads PowerState and subscribes to PowerStateChanged.
func (m *MirrorPower) Declare() *cmdtree.CommandNode {
	return cmdtree.NewCommand("").
		GetProperty(PropPowerState).
		Subscribe(EventPowerStateChanged)
}

// HandleCommand applies pushed states. A raised event is applied before
// the property so its expected duration is kept.
func (m *MirrorPower) HandleCommand(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	for _, e := range cmd.Events {
		if e.Op == cmdtree.EventRaised && e.Name == EventPowerStateChanged {
			m.applyEvent(e.Payload)
		}
	}
	for _, p := range cmd.Properties {
		if p.Op == cmdtree.PropertyChanged && p.Name == PropPowerState {
			m.applyState(p.Value, 0)
		}
	}
	return nil
}

// HandleResult applies read states and records call failures.
func (m *MirrorPower) HandleResult(res *cmdtree.ResultNode) {
	for _, p := range res.Properties {
		if p.Name == PropPowerState {
			m.applyState(p.Value, 0)
		}
	}
	for _, e := range res.Events {
		if e.Name == EventPowerStateChanged {
			m.applyEvent(e.Payload)
		}
	}
	for _, r := range res.Methods {
		m.recordCall(r)
	}
}

func (m *MirrorPower) applyEvent(payload any) {
	args, ok := payload.([]any)
	if !ok || len(args) < 2 {
		unhandled(m.logger, "event", EventPowerStateChanged)
		return
	}
	ms, err := cmdtree.Int(args[1])
	if err != nil {
		unhandled(m.logger, "event", EventPowerStateChanged)
		return
	}
	m.applyState(args[0], time.Duration(ms)*time.Millisecond)
}

func (m *MirrorPower) applyState(value any, expected time.Duration) {
	v, err := cmdtree.Int(value)
	if err != nil || !power.State(v).IsValid() {
		if m.logger != nil {
			m.logger.Warn("invalid remote power state", "value", value)
		}
		return
	}
	s := power.State(v)

	m.mu.Lock()
	old := m.state
	m.state = s
	m.mu.Unlock()

	if old != s {
		m.changed.Raise(power.StateChanged{Old: old, New: s, ExpectedDuration: expected})
	}
}

func (m *MirrorPower) recordCall(r cmdtree.MethodResult) {
	var err error
	if r.Error != "" {
		err = fmt.Errorf("%w: %s: %s", ErrRemote, r.Name, r.Error)
		if m.logger != nil {
			m.logger.Warn("remote power call failed", "method", r.Name, "error", r.Error)
		}
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

var (
	_ power.Controller = (*MirrorPower)(nil)
	_ cmdtree.Node     = (*MirrorPower)(nil)
)
