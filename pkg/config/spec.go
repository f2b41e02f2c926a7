package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
)

// Configuration errors.
var (
	ErrInvalidSpec  = errors.New("invalid device spec")
	ErrUnknownType  = errors.New("unknown control type")
	ErrInvalidParam = errors.New("invalid control param")
)

// EnvDeviceName overrides the device name of a loaded file.
const EnvDeviceName = "DEVICE_NAME"

// ControlSpec describes one control.
type ControlSpec struct {
	ID     int            `yaml:"id"`
	Type   string         `yaml:"type"`
	Name   string         `yaml:"name,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

// DeviceSpec describes a device and its controls.
type DeviceSpec struct {
	ID       int           `yaml:"id"`
	Name     string        `yaml:"name,omitempty"`
	Controls []ControlSpec `yaml:"controls,omitempty"`
}

// Validate checks that every control has a type and a unique id.
func (s DeviceSpec) Validate() error {
	var errs []string
	seen := make(map[int]bool, len(s.Controls))
	for i, c := range s.Controls {
		if c.Type == "" {
			errs = append(errs, fmt.Sprintf("controls[%d].type is required", i))
		}
		if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("controls[%d]: %v %d", i, device.ErrDuplicateID, c.ID))
		}
		seen[c.ID] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(errs, "; "))
	}
	return nil
}

// Load parses a device spec from r, applies environment overrides and
// validates it.
func Load(r io.Reader) (DeviceSpec, error) {
	var spec DeviceSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return DeviceSpec{}, fmt.Errorf("parsing device file: %w", err)
	}

	applyEnvOverrides(&spec)

	if err := spec.Validate(); err != nil {
		return DeviceSpec{}, err
	}
	return spec, nil
}

// LoadFile reads a device spec from path.
func LoadFile(path string) (DeviceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeviceSpec{}, fmt.Errorf("reading device file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Save writes spec as YAML.
func Save(w io.Writer, spec DeviceSpec) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return fmt.Errorf("encoding device file: %w", err)
	}
	return enc.Close()
}

// SaveFile writes spec to path.
func SaveFile(path string, spec DeviceSpec) error {
	var buf bytes.Buffer
	if err := Save(&buf, spec); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing device file: %w", err)
	}
	return nil
}

func applyEnvOverrides(spec *DeviceSpec) {
	if v := os.Getenv(EnvDeviceName); v != "" {
		spec.Name = v
	}
}
