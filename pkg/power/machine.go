package power

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// Power errors.
var (
	ErrInvalidState = errors.New("invalid power state")
	ErrNotBound     = errors.New("sequencer not bound to a machine")
)

// Actuator performs the hardware power actions. Errors are returned to the
// caller of PowerOn/PowerOff unchanged; the machine never retries.
//
// An actuator reports the resulting state through Machine.SetState, either
// from within the final action or later when the hardware confirms.
type Actuator interface {
	PowerOnFinal() error
	PowerOffFinal() error
}

// Hook interposes on PowerOn or PowerOff. It is responsible for calling
// final, now or later.
type Hook func(final func() error) error

// Config configures a Machine.
type Config struct {
	// Logger receives transitions and action failures. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger receives state and activity events. Nil disables them.
	ProtocolLogger log.Logger

	// DeviceID and ControlID tag emitted events.
	DeviceID  int
	ControlID int

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Action is the bookkeeping record of the last final action.
type Action struct {
	Name string
	At   time.Time
	Err  error
}

// Machine is the power state machine.
type Machine struct {
	mu sync.RWMutex

	state    State
	actuator Actuator
	preOn    Hook
	preOff   Hook
	last     Action

	changed event.Source[StateChanged]

	cfg  Config
	plog log.Logger
}

// NewMachine creates a machine in the Unknown state.
// A nil actuator makes the final actions set PowerOn/PowerOff directly.
func NewMachine(actuator Actuator, cfg Config) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		actuator: actuator,
		cfg:      cfg,
		plog:     log.OrNoop(cfg.ProtocolLogger),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// StateChanged returns the transition notification source.
func (m *Machine) StateChanged() *event.Source[StateChanged] {
	return &m.changed
}

// SetPreOnHook installs (or with nil removes) the power-on hook.
func (m *Machine) SetPreOnHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preOn = h
}

// SetPreOffHook installs (or with nil removes) the power-off hook.
func (m *Machine) SetPreOffHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preOff = h
}

// LastAction returns the record of the most recent final action.
func (m *Machine) LastAction() Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// PowerOn runs the pre-on hook if set, otherwise the final action.
func (m *Machine) PowerOn() error {
	m.mu.RLock()
	hook := m.preOn
	m.mu.RUnlock()

	if hook != nil {
		return hook(m.powerOnFinal)
	}
	return m.powerOnFinal()
}

// PowerOnBypass runs the final power-on action, skipping the hook.
func (m *Machine) PowerOnBypass() error {
	return m.powerOnFinal()
}

// PowerOff runs the pre-off hook if set, otherwise the final action.
func (m *Machine) PowerOff() error {
	m.mu.RLock()
	hook := m.preOff
	m.mu.RUnlock()

	if hook != nil {
		return hook(m.powerOffFinal)
	}
	return m.powerOffFinal()
}

// PowerOffBypass runs the final power-off action, skipping the hook.
func (m *Machine) PowerOffBypass() error {
	return m.powerOffFinal()
}

func (m *Machine) powerOnFinal() error {
	if m.actuator == nil {
		return m.runFinal("PowerOn", func() error { return m.SetState(PowerOn, 0) })
	}
	return m.runFinal("PowerOn", m.actuator.PowerOnFinal)
}

func (m *Machine) powerOffFinal() error {
	if m.actuator == nil {
		return m.runFinal("PowerOff", func() error { return m.SetState(PowerOff, 0) })
	}
	return m.runFinal("PowerOff", m.actuator.PowerOffFinal)
}

// runFinal executes fn and records the action whatever the outcome.
func (m *Machine) runFinal(name string, fn func() error) (err error) {
	defer func() {
		m.record(name, err)
	}()
	return fn()
}

func (m *Machine) record(name string, err error) {
	at := m.cfg.Now()

	m.mu.Lock()
	m.last = Action{Name: name, At: at, Err: err}
	m.mu.Unlock()

	activity := &log.ActivityEvent{Action: name}
	if err != nil {
		activity.Error = err.Error()
		if m.cfg.Logger != nil {
			m.cfg.Logger.Warn("power action failed",
				"action", name, "device", m.cfg.DeviceID, "control", m.cfg.ControlID, "error", err)
		}
	}
	m.plog.Log(log.Event{
		Timestamp: at,
		Direction: log.DirectionLocal,
		Layer:     log.LayerControl,
		Category:  log.CategoryActivity,
		DeviceID:  m.cfg.DeviceID,
		ControlID: m.cfg.ControlID,
		Activity:  activity,
	})
}

// SetState is the only state mutator. Setting the current state is a
// no-op; otherwise the transition is logged and StateChanged is raised.
func (m *Machine) SetState(s State, expected time.Duration) error {
	if !s.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, s)
	}

	m.mu.Lock()
	old := m.state
	if old == s {
		m.mu.Unlock()
		return nil
	}
	m.state = s
	m.mu.Unlock()

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info("power state changed",
			"device", m.cfg.DeviceID, "control", m.cfg.ControlID,
			"from", old, "to", s, "expected", expected)
	}
	m.plog.Log(log.Event{
		Timestamp: m.cfg.Now(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerControl,
		Category:  log.CategoryState,
		DeviceID:  m.cfg.DeviceID,
		ControlID: m.cfg.ControlID,
		StateChange: &log.StateChangeEvent{
			Entity:           log.StateEntityPower,
			OldState:         old.String(),
			NewState:         s.String(),
			ExpectedDuration: expected,
		},
	})

	m.changed.Raise(StateChanged{Old: old, New: s, ExpectedDuration: expected})
	return nil
}
