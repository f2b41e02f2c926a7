package ramp

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Repeater errors.
var (
	ErrClosed           = errors.New("repeater closed")
	ErrNoControl        = errors.New("no control bound")
	ErrInvalidDirection = errors.New("invalid direction")
)

// Default cadence.
const (
	DefaultBeforeRepeat  = 250 * time.Millisecond
	DefaultBetweenRepeat = 250 * time.Millisecond
)

// Config configures the repeat cadence.
type Config struct {
	// BeforeRepeat is the pause after the immediate step before the repeat
	// cadence starts.
	BeforeRepeat time.Duration

	// BetweenRepeat is the interval between repeated steps.
	BetweenRepeat time.Duration

	// Scheduler arms the timers. Nil uses SystemScheduler.
	Scheduler Scheduler

	// Logger receives step failures from timer callbacks. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the 250ms/250ms cadence on system timers.
func DefaultConfig() Config {
	return Config{
		BeforeRepeat:  DefaultBeforeRepeat,
		BetweenRepeat: DefaultBetweenRepeat,
	}
}

func (c Config) withDefaults() Config {
	if c.BeforeRepeat <= 0 {
		c.BeforeRepeat = DefaultBeforeRepeat
	}
	if c.BetweenRepeat <= 0 {
		c.BetweenRepeat = DefaultBetweenRepeat
	}
	if c.Scheduler == nil {
		c.Scheduler = SystemScheduler{}
	}
	return c
}

// stepFunc performs one step; first is true for the immediate step of a hold.
type stepFunc func(dir Direction, first bool) error

// engine is the timer state shared by both repeater flavours.
//
// Every Hold and Release bumps gen; a timer callback carries the generation
// it was armed for and does nothing once that generation is stale.
type engine struct {
	mu sync.Mutex

	cfg     Config
	step    stepFunc
	dir     Direction
	holding bool
	gen     uint64
	timer   Timer
	closed  bool
}

func (e *engine) hold(dir Direction) error {
	if dir != Up && dir != Down {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, dir)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.step == nil {
		e.mu.Unlock()
		return ErrNoControl
	}
	e.stopLocked()
	e.gen++
	e.dir = dir
	e.holding = true
	gen := e.gen
	step := e.step
	e.mu.Unlock()

	err := step(dir, true)

	e.mu.Lock()
	if e.gen == gen && e.holding {
		e.timer = e.cfg.Scheduler.AfterFunc(e.cfg.BeforeRepeat, func() { e.tick(gen, true) })
	}
	e.mu.Unlock()

	return err
}

// tick runs on the scheduler goroutine.
func (e *engine) tick(gen uint64, warmup bool) {
	e.mu.Lock()
	if e.closed || !e.holding || e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.timer = e.cfg.Scheduler.AfterFunc(e.cfg.BetweenRepeat, func() { e.tick(gen, false) })
	if warmup {
		e.mu.Unlock()
		return
	}
	dir := e.dir
	step := e.step
	e.mu.Unlock()

	if err := step(dir, false); err != nil && e.cfg.Logger != nil {
		e.cfg.Logger.Warn("ramp: repeat step failed", "direction", dir, "error", err)
	}
}

func (e *engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.holding {
		return
	}
	e.holding = false
	e.gen++
	e.stopLocked()
}

func (e *engine) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.holding = false
	e.gen++
	e.stopLocked()
	e.closed = true
	e.step = nil
}

func (e *engine) stopLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *engine) isHolding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.holding
}

func (e *engine) setStep(step stepFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.holding = false
	e.gen++
	e.stopLocked()
	e.step = step
	return nil
}

// Repeater performs one default-sized step per tick against a Stepper.
type Repeater struct {
	e engine
}

// NewRepeater creates a repeater bound to control (which may be nil and set
// later with SetControl).
func NewRepeater(control Stepper, cfg Config) *Repeater {
	r := &Repeater{e: engine{cfg: cfg.withDefaults()}}
	r.e.step = basicStep(control)
	return r
}

func basicStep(control Stepper) stepFunc {
	if control == nil {
		return nil
	}
	return func(dir Direction, _ bool) error {
		if dir == Up {
			return control.Increment()
		}
		return control.Decrement()
	}
}

// Hold stops any prior run, steps once immediately in dir and arms the
// repeat timer. The error of the immediate step is returned; the hold stays
// active regardless.
func (r *Repeater) Hold(dir Direction) error {
	return r.e.hold(dir)
}

// Release disarms the timer. It is safe to call when not holding.
func (r *Repeater) Release() {
	r.e.release()
}

// IsHolding reports whether a hold is active.
func (r *Repeater) IsHolding() bool {
	return r.e.isHolding()
}

// SetControl rebinds the repeater. Any active hold is released first.
func (r *Repeater) SetControl(control Stepper) error {
	return r.e.setStep(basicStep(control))
}

// Close releases and drops the control. Later holds fail with ErrClosed.
func (r *Repeater) Close() error {
	r.e.close()
	return nil
}

// LeveledConfig adds step sizes to Config.
type LeveledConfig struct {
	Config

	// InitialStep is used for the immediate step of a hold.
	// Zero means the control's DefaultStep.
	InitialStep float64

	// RepeatStep is used for every repeated step.
	// Zero means the control's DefaultStep.
	RepeatStep float64
}

// LeveledRepeater steps a LevelStepper with distinct initial and repeat sizes.
type LeveledRepeater struct {
	e engine

	initialStep float64
	repeatStep  float64
}

// NewLeveledRepeater creates a leveled repeater bound to control.
func NewLeveledRepeater(control LevelStepper, cfg LeveledConfig) *LeveledRepeater {
	r := &LeveledRepeater{
		e:           engine{cfg: cfg.Config.withDefaults()},
		initialStep: cfg.InitialStep,
		repeatStep:  cfg.RepeatStep,
	}
	r.e.step = r.levelStep(control)
	return r
}

func (r *LeveledRepeater) levelStep(control LevelStepper) stepFunc {
	if control == nil {
		return nil
	}
	return func(dir Direction, first bool) error {
		size := r.repeatStep
		if first {
			size = r.initialStep
		}
		if size <= 0 {
			size = control.DefaultStep()
		}
		if dir == Up {
			return control.IncrementBy(size)
		}
		return control.DecrementBy(size)
	}
}

// Hold stops any prior run, steps once by InitialStep and arms the timer.
func (r *LeveledRepeater) Hold(dir Direction) error {
	return r.e.hold(dir)
}

// Release disarms the timer.
func (r *LeveledRepeater) Release() {
	r.e.release()
}

// IsHolding reports whether a hold is active.
func (r *LeveledRepeater) IsHolding() bool {
	return r.e.isHolding()
}

// SetControl rebinds the repeater. Any active hold is released first.
func (r *LeveledRepeater) SetControl(control LevelStepper) error {
	return r.e.setStep(r.levelStep(control))
}

// Close releases and drops the control.
func (r *LeveledRepeater) Close() error {
	r.e.close()
	return nil
}
