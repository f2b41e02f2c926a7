package volume

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/event"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/ramp"
)

// Volume errors.
var (
	ErrInvalidLevel     = errors.New("invalid volume level")
	ErrMuteNotSupported = errors.New("mute not supported")
	ErrInvalidRange     = errors.New("invalid volume range")
)

// Defaults.
const (
	DefaultMin  = 0.0
	DefaultMax  = 100.0
	DefaultStep = 1.0
)

// Driver applies volume changes to hardware. A nil Driver accepts every
// change.
type Driver interface {
	SetVolumeFinal(raw float64) error
	SetMuteFinal(muted bool) error
}

// VolumeChanged is raised when the raw level changes.
type VolumeChanged struct {
	Raw   float64
	Level float64
}

// MuteChanged is raised when the mute state changes.
type MuteChanged struct {
	Muted bool
}

// Config configures a Control.
type Config struct {
	// Min and Max bound the raw level. Both zero means 0..100.
	Min float64
	Max float64

	// SafetyMax caps the raw level below Max. Zero disables the cap.
	SafetyMax float64

	// Step is the default increment. Zero means DefaultStep.
	Step float64

	// Mute enables the volume-mute capability.
	Mute bool

	// Initial is the starting raw level (clamped).
	Initial float64

	// Logger receives driver failures. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger receives activity events. Nil disables them.
	ProtocolLogger log.Logger

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns a 0..100 range with mute.
func DefaultConfig() Config {
	return Config{Min: DefaultMin, Max: DefaultMax, Step: DefaultStep, Mute: true}
}

// Validate checks the range settings.
func (c Config) Validate() error {
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) || c.Min > c.Max {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, c.Min, c.Max)
	}
	if c.SafetyMax < 0 || math.IsNaN(c.SafetyMax) {
		return fmt.Errorf("%w: safety max %v", ErrInvalidRange, c.SafetyMax)
	}
	if c.Step < 0 || math.IsNaN(c.Step) {
		return fmt.Errorf("%w: step %v", ErrInvalidRange, c.Step)
	}
	return nil
}

// Controller is the behaviour shared by local and mirrored volume controls.
type Controller interface {
	device.Control
	ramp.Stepper
	ramp.LevelStepper

	VolumeRaw() float64
	Level() float64
	SetVolumeRaw(raw float64) error
	SetLevel(level float64) error
	IsMuted() bool
	SetMuted(muted bool) error
	ToggleMute() error
	VolumeChanged() *event.Source[VolumeChanged]
	MuteChanged() *event.Source[MuteChanged]
}

// Control is a device control with volume state.
type Control struct {
	*device.BaseControl

	// stepMu serializes level writes so a step reads the level it replaces.
	stepMu sync.Mutex

	mu    sync.RWMutex
	raw   float64
	muted bool

	driver Driver
	cfg    Config
	plog   log.Logger

	volumeChanged event.Source[VolumeChanged]
	muteChanged   event.Source[MuteChanged]
}

// NewControl creates a volume control. Invalid ranges are rejected.
func NewControl(parent *device.Device, id int, name string, driver Driver, cfg Config) (*Control, error) {
	if cfg.Min == 0 && cfg.Max == 0 {
		cfg.Min, cfg.Max = DefaultMin, DefaultMax
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Step == 0 {
		cfg.Step = DefaultStep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	caps := []device.Capability{device.CapVolumeRaw, device.CapVolumeLevel}
	if cfg.Mute {
		caps = append(caps, device.CapVolumeMute)
	}

	c := &Control{
		BaseControl: device.NewBaseControl(parent, id, name, caps...),
		driver:      driver,
		cfg:         cfg,
		plog:        log.OrNoop(cfg.ProtocolLogger),
	}
	c.raw = c.clamp(cfg.Initial)
	c.OnClose(func() error {
		c.volumeChanged.Clear()
		c.muteChanged.Clear()
		return nil
	})
	return c, nil
}

// Describe returns the settings type and parameters of c.
func (c *Control) Describe() (string, map[string]any) {
	params := map[string]any{
		"min":  c.cfg.Min,
		"max":  c.cfg.Max,
		"step": c.cfg.Step,
		"mute": c.cfg.Mute,
	}
	if c.cfg.SafetyMax != 0 {
		params["safety-max"] = c.cfg.SafetyMax
	}
	return "volume", params
}

// Min returns the lower raw bound.
func (c *Control) Min() float64 { return c.cfg.Min }

// Max returns the effective upper raw bound, including the safety cap.
func (c *Control) Max() float64 {
	if c.cfg.SafetyMax > 0 && c.cfg.SafetyMax >= c.cfg.Min && c.cfg.SafetyMax < c.cfg.Max {
		return c.cfg.SafetyMax
	}
	return c.cfg.Max
}

// DefaultStep returns the configured default step.
func (c *Control) DefaultStep() float64 { return c.cfg.Step }

// SupportsMute reports whether the control carries volume-mute.
func (c *Control) SupportsMute() bool { return c.cfg.Mute }

func (c *Control) clamp(raw float64) float64 {
	return math.Min(math.Max(raw, c.cfg.Min), c.Max())
}

// VolumeRaw returns the raw level.
func (c *Control) VolumeRaw() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raw
}

// Level returns the raw level as a 0..1 position within [Min, Max].
func (c *Control) Level() float64 {
	return c.levelOf(c.VolumeRaw())
}

func (c *Control) levelOf(raw float64) float64 {
	span := c.cfg.Max - c.cfg.Min
	if span == 0 {
		return 0
	}
	return (raw - c.cfg.Min) / span
}

// SetVolumeRaw clamps raw and applies it through the driver.
func (c *Control) SetVolumeRaw(raw float64) error {
	if math.IsNaN(raw) {
		return fmt.Errorf("%w: NaN", ErrInvalidLevel)
	}
	return c.write(func(float64) float64 { return raw })
}

// write applies the level next computes from the current one. The read,
// the driver call and the store happen under stepMu; VolumeChanged is
// raised after it is released.
func (c *Control) write(next func(current float64) float64) error {
	c.stepMu.Lock()
	target := c.clamp(next(c.VolumeRaw()))

	var err error
	if c.driver != nil {
		err = c.driver.SetVolumeFinal(target)
	}
	c.record("SetVolumeRaw", target, err)
	changed := false
	if err == nil {
		changed = c.store(target)
	}
	c.stepMu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		c.volumeChanged.Raise(VolumeChanged{Raw: target, Level: c.levelOf(target)})
	}
	return nil
}

func (c *Control) store(target float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.raw != target
	c.raw = target
	return changed
}

// SetLevel sets a 0..1 position.
func (c *Control) SetLevel(level float64) error {
	if math.IsNaN(level) {
		return fmt.Errorf("%w: NaN", ErrInvalidLevel)
	}
	level = math.Min(math.Max(level, 0), 1)
	return c.SetVolumeRaw(c.cfg.Min + level*(c.cfg.Max-c.cfg.Min))
}

// IncrementBy raises the raw level by step. Concurrent steps are applied
// one after another.
func (c *Control) IncrementBy(step float64) error {
	if math.IsNaN(step) {
		return fmt.Errorf("%w: NaN step", ErrInvalidLevel)
	}
	return c.write(func(current float64) float64 { return current + step })
}

// DecrementBy lowers the raw level by step.
func (c *Control) DecrementBy(step float64) error {
	if math.IsNaN(step) {
		return fmt.Errorf("%w: NaN step", ErrInvalidLevel)
	}
	return c.write(func(current float64) float64 { return current - step })
}

// Increment raises the raw level by the default step.
func (c *Control) Increment() error {
	return c.IncrementBy(c.cfg.Step)
}

// Decrement lowers the raw level by the default step.
func (c *Control) Decrement() error {
	return c.DecrementBy(c.cfg.Step)
}

// ReportVolumeRaw records a level confirmed by hardware without calling
// the driver. VolumeChanged is raised if the clamped level differs.
func (c *Control) ReportVolumeRaw(raw float64) {
	target := c.clamp(raw)
	if c.store(target) {
		c.volumeChanged.Raise(VolumeChanged{Raw: target, Level: c.levelOf(target)})
	}
}

// IsMuted reports the mute state.
func (c *Control) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SetMuted applies the mute state through the driver.
func (c *Control) SetMuted(muted bool) error {
	if !c.cfg.Mute {
		return ErrMuteNotSupported
	}

	var err error
	if c.driver != nil {
		err = c.driver.SetMuteFinal(muted)
	}
	c.record("SetMuted", muted, err)
	if err != nil {
		return err
	}
	c.ReportMuted(muted)
	return nil
}

// ToggleMute inverts the mute state.
func (c *Control) ToggleMute() error {
	return c.SetMuted(!c.IsMuted())
}

// ReportMuted records a mute state confirmed by hardware.
func (c *Control) ReportMuted(muted bool) {
	c.mu.Lock()
	changed := c.muted != muted
	c.muted = muted
	c.mu.Unlock()

	if changed {
		c.muteChanged.Raise(MuteChanged{Muted: muted})
	}
}

// VolumeChanged returns the level notification source.
func (c *Control) VolumeChanged() *event.Source[VolumeChanged] {
	return &c.volumeChanged
}

// MuteChanged returns the mute notification source.
func (c *Control) MuteChanged() *event.Source[MuteChanged] {
	return &c.muteChanged
}

func (c *Control) record(action string, value any, err error) {
	info := c.Info()
	activity := &log.ActivityEvent{Action: action, Value: value}
	if err != nil {
		activity.Error = err.Error()
		if c.cfg.Logger != nil {
			c.cfg.Logger.Warn("volume action failed",
				"action", action, "device", info.DeviceID, "control", info.ControlID, "error", err)
		}
	}
	c.plog.Log(log.Event{
		Timestamp: c.cfg.Now(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerControl,
		Category:  log.CategoryActivity,
		DeviceID:  info.DeviceID,
		ControlID: info.ControlID,
		Activity:  activity,
	})
}

var _ Controller = (*Control)(nil)
