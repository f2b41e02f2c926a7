// Package cli holds the flag-driven setup shared by the device binaries.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/config"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
)

// NewLogger builds the operational logger for level ("debug", "info",
// "warn", "error") and format ("text" or "json").
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// Output is a log destination that can be redirected after the logger is
// built.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput returns an Output writing to w.
func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// SetOutput redirects subsequent writes to w.
func (o *Output) SetOutput(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w = w
}

// Write implements io.Writer.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

// ProtocolLogger combines a CBOR capture file at path (if set) with a
// debug-level console adapter. The returned close function releases the
// file.
func ProtocolLogger(path string, logger *slog.Logger) (log.Logger, func() error, error) {
	loggers := []log.Logger{log.NewSlogAdapter(logger)}
	closeFn := func() error { return nil }

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = fl.Close
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}

// DemoSpec is the device used when no file is given: a projector with
// sequenced power and a volume control.
func DemoSpec() config.DeviceSpec {
	return config.DeviceSpec{
		ID:   1,
		Name: "Demo Projector",
		Controls: []config.ControlSpec{
			{ID: 1, Type: config.TypeSequencedPower, Name: "Power",
				Params: map[string]any{"warm-up": "3s", "cool-down": "5s"}},
			{ID: 2, Type: config.TypeVolume, Name: "Volume",
				Params: map[string]any{"min": 0, "max": 100, "mute": true}},
		},
	}
}

// LoadSpec reads the device file at path, or returns DemoSpec when path is
// empty.
func LoadSpec(path string) (config.DeviceSpec, error) {
	if path == "" {
		spec := DemoSpec()
		if v := os.Getenv(config.EnvDeviceName); v != "" {
			spec.Name = v
		}
		return spec, nil
	}
	spec, err := config.LoadFile(path)
	if err != nil {
		return config.DeviceSpec{}, err
	}
	if len(spec.Controls) == 0 {
		return config.DeviceSpec{}, errors.New("device file lists no controls")
	}
	return spec, nil
}
