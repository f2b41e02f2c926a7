package power

import (
	"sync"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/ramp"
)

// SequenceConfig configures warm-up and cool-down phases.
type SequenceConfig struct {
	// WarmUp is spent in Warming before PowerOn. Zero skips the phase.
	WarmUp time.Duration

	// CoolDown is spent in Cooling before PowerOff. Zero skips the phase.
	CoolDown time.Duration

	// Scheduler arms the phase timers. Nil uses ramp.SystemScheduler.
	Scheduler ramp.Scheduler
}

// Sequenced wraps an Actuator with timed Warming/Cooling phases.
// After the inner action succeeds it moves the bound machine to the
// transient state and, once the phase elapses, to the stable state.
type Sequenced struct {
	inner Actuator
	cfg   SequenceConfig

	mu      sync.Mutex
	machine *Machine
	timer   ramp.Timer
	gen     uint64
}

// NewSequenced creates the wrapper. inner may be nil for pure timing.
func NewSequenced(inner Actuator, cfg SequenceConfig) *Sequenced {
	if cfg.Scheduler == nil {
		cfg.Scheduler = ramp.SystemScheduler{}
	}
	return &Sequenced{inner: inner, cfg: cfg}
}

// Bind sets the machine the phases drive.
func (s *Sequenced) Bind(m *Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = m
}

// PowerOnFinal runs the inner action, then Warming for WarmUp, then PowerOn.
func (s *Sequenced) PowerOnFinal() error {
	return s.run(PowerOn, Warming, s.cfg.WarmUp, func(a Actuator) error { return a.PowerOnFinal() })
}

// PowerOffFinal runs the inner action, then Cooling for CoolDown, then PowerOff.
func (s *Sequenced) PowerOffFinal() error {
	return s.run(PowerOff, Cooling, s.cfg.CoolDown, func(a Actuator) error { return a.PowerOffFinal() })
}

func (s *Sequenced) run(target, transient State, phase time.Duration, act func(Actuator) error) error {
	s.mu.Lock()
	m := s.machine
	s.mu.Unlock()
	if m == nil {
		return ErrNotBound
	}

	if s.inner != nil {
		if err := act(s.inner); err != nil {
			return err
		}
	}

	if m.State() == target {
		s.Stop()
		return nil
	}
	if phase <= 0 {
		s.Stop()
		return m.SetState(target, 0)
	}

	if err := m.SetState(transient, phase); err != nil {
		return err
	}

	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = s.cfg.Scheduler.AfterFunc(phase, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		_ = m.SetState(target, 0)
	})
	s.mu.Unlock()
	return nil
}

// Stop cancels a pending phase transition.
func (s *Sequenced) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

func (s *Sequenced) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

var _ Actuator = (*Sequenced)(nil)

// NewSequencedControl creates a power control whose final actions go through
// a Sequenced wrapper around inner.
func NewSequencedControl(parent *device.Device, id int, name string, inner Actuator, seq SequenceConfig, cfg Config) *Control {
	s := NewSequenced(inner, seq)
	c := NewControl(parent, id, name, s, cfg)
	s.Bind(c.Machine)
	c.sequence = s
	c.OnClose(func() error {
		s.Stop()
		return nil
	})
	return c
}
