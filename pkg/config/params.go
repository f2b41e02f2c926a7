package config

import (
	"fmt"
	"time"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

func paramError(spec ControlSpec, key string, err error) error {
	return fmt.Errorf("%w: control %d param %q: %v", ErrInvalidParam, spec.ID, key, err)
}

// Float reads a numeric param, returning def when it is absent.
func (s ControlSpec) Float(key string, def float64) (float64, error) {
	v, ok := s.Params[key]
	if !ok {
		return def, nil
	}
	f, err := cmdtree.Float(v)
	if err != nil {
		return 0, paramError(s, key, err)
	}
	return f, nil
}

// Bool reads a boolean param, returning def when it is absent.
func (s ControlSpec) Bool(key string, def bool) (bool, error) {
	v, ok := s.Params[key]
	if !ok {
		return def, nil
	}
	b, err := cmdtree.Bool(v)
	if err != nil {
		return false, paramError(s, key, err)
	}
	return b, nil
}

// Duration reads a duration param given as a Go duration string ("30s") or
// as milliseconds, returning def when it is absent.
func (s ControlSpec) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.Params[key]
	if !ok {
		return def, nil
	}
	if text, ok := v.(string); ok {
		d, err := time.ParseDuration(text)
		if err != nil {
			return 0, paramError(s, key, err)
		}
		return d, nil
	}
	ms, err := cmdtree.Float(v)
	if err != nil {
		return 0, paramError(s, key, err)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
