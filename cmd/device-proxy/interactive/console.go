// Package interactive provides the command console of device-proxy.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/ramp"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

// Console drives the power and volume controls of a device from typed
// commands.
type Console struct {
	dev   *device.Device
	out   io.Writer
	sched ramp.Scheduler
	rl    *readline.Instance

	mu      sync.Mutex
	ramper  *ramp.LeveledRepeater
	release ramp.Timer
}

// New creates a console reading from the terminal.
func New(dev *device.Device) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "proxy> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(dev, rl.Stdout(), ramp.SystemScheduler{})
	c.rl = rl
	return c, nil
}

func newConsole(dev *device.Device, out io.Writer, sched ramp.Scheduler) *Console {
	return &Console{dev: dev, out: out, sched: sched}
}

// Stdout returns a writer that coordinates with the prompt. Use it for log
// output.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if !c.Exec(line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should
// exit.
func (c *Console) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "power", "p":
		c.cmdPower(args)
	case "vol", "volume":
		c.cmdVolume(args)
	case "level":
		c.cmdLevel(args)
	case "up", "down":
		c.cmdStep(cmd, args)
	case "ramp":
		c.cmdRamp(args)
	case "mute":
		c.cmdMute(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

// Close stops a running ramp.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.release != nil {
		c.release.Stop()
		c.release = nil
	}
	if c.ramper != nil {
		return c.ramper.Close()
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Device Proxy Commands:
  status              - Show device and control state
  power on|off        - Switch power
  vol <raw>           - Set the raw volume level
  level <0..1>        - Set the volume position
  up|down [n]         - Step the volume n times (default 1)
  ramp up|down <dur>  - Hold a volume ramp for a duration (e.g. 2s)
  mute [on|off]       - Toggle or set mute
  help                - Show this help
  quit                - Exit`)
}

func (c *Console) cmdStatus() {
	state := "offline"
	if c.dev.IsOnline() {
		state = "online"
	}
	fmt.Fprintf(c.out, "%s (device %d) %s\n", c.dev.Name(), c.dev.ID(), state)

	for _, ctl := range c.dev.Controls().Controls() {
		switch x := ctl.(type) {
		case power.Controller:
			fmt.Fprintf(c.out, "  [%d] %s: %s\n", x.ID(), x.Name(), x.State())
		case volume.Controller:
			muted := ""
			if x.IsMuted() {
				muted = " muted"
			}
			fmt.Fprintf(c.out, "  [%d] %s: raw %.1f level %.2f%s\n", x.ID(), x.Name(), x.VolumeRaw(), x.Level(), muted)
		default:
			fmt.Fprintf(c.out, "  [%d] %s\n", ctl.ID(), ctl.Name())
		}
	}
}

func (c *Console) powerControl() (power.Controller, bool) {
	p, ok := device.FirstAs[power.Controller](c.dev.Controls(), device.CapPower)
	if !ok {
		fmt.Fprintln(c.out, "No power control")
	}
	return p, ok
}

func (c *Console) volumeControl() (volume.Controller, bool) {
	v, ok := device.FirstAs[volume.Controller](c.dev.Controls(), device.CapVolumeRaw)
	if !ok {
		fmt.Fprintln(c.out, "No volume control")
	}
	return v, ok
}

func (c *Console) report(action string, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "%s failed: %v\n", action, err)
		return
	}
	fmt.Fprintf(c.out, "%s sent\n", action)
}

func (c *Console) cmdPower(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: power on|off")
		return
	}
	p, ok := c.powerControl()
	if !ok {
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.report("PowerOn", p.PowerOn())
	case "off":
		c.report("PowerOff", p.PowerOff())
	default:
		fmt.Fprintln(c.out, "Usage: power on|off")
	}
}

func (c *Console) cmdVolume(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: vol <raw>")
		return
	}
	raw, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid level: %s\n", args[0])
		return
	}
	if v, ok := c.volumeControl(); ok {
		c.report("SetVolumeRaw", v.SetVolumeRaw(raw))
	}
}

func (c *Console) cmdLevel(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: level <0..1>")
		return
	}
	level, err := strconv.ParseFloat(args[0], 64)
	if err != nil || level < 0 || level > 1 {
		fmt.Fprintf(c.out, "Invalid position: %s\n", args[0])
		return
	}
	if v, ok := c.volumeControl(); ok {
		c.report("SetLevel", v.SetLevel(level))
	}
}

func (c *Console) cmdStep(dir string, args []string) {
	n := 1
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
			fmt.Fprintf(c.out, "Invalid count: %s\n", args[0])
			return
		}
	}
	v, ok := c.volumeControl()
	if !ok {
		return
	}
	step := v.Increment
	if dir == "down" {
		step = v.Decrement
	}
	for i := 0; i < n; i++ {
		if err := step(); err != nil {
			c.report(dir, err)
			return
		}
	}
	c.report(fmt.Sprintf("%s x%d", dir, n), nil)
}

func (c *Console) cmdRamp(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: ramp up|down <duration>")
		return
	}
	var dir ramp.Direction
	switch strings.ToLower(args[0]) {
	case "up":
		dir = ramp.Up
	case "down":
		dir = ramp.Down
	default:
		fmt.Fprintln(c.out, "Usage: ramp up|down <duration>")
		return
	}
	hold, err := time.ParseDuration(args[1])
	if err != nil || hold <= 0 {
		fmt.Fprintf(c.out, "Invalid duration: %s\n", args[1])
		return
	}
	v, ok := c.volumeControl()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.release != nil {
		c.release.Stop()
	}
	if c.ramper == nil {
		c.ramper = ramp.NewLeveledRepeater(v, ramp.LeveledConfig{Config: ramp.Config{Scheduler: c.sched}})
	} else if err := c.ramper.SetControl(v); err != nil {
		c.report("ramp", err)
		return
	}
	if err := c.ramper.Hold(dir); err != nil {
		c.report("ramp", err)
		return
	}
	r := c.ramper
	c.release = c.sched.AfterFunc(hold, r.Release)
	fmt.Fprintf(c.out, "Ramping %s for %v\n", dir, hold)
}

func (c *Console) cmdMute(args []string) {
	v, ok := c.volumeControl()
	if !ok {
		return
	}
	if len(args) == 0 {
		c.report("ToggleMute", v.ToggleMute())
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.report("SetMuted", v.SetMuted(true))
	case "off":
		c.report("SetMuted", v.SetMuted(false))
	default:
		fmt.Fprintln(c.out, "Usage: mute [on|off]")
	}
}
