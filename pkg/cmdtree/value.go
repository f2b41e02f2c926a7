package cmdtree

import (
	"fmt"
	"math"
)

// Values travel as CBOR-compatible dynamic values; after a round trip
// integers may arrive as int64 or uint64 and floats as float64. These
// helpers coerce them back.

// Float coerces a numeric value to float64.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// Int coerces an integral value to int.
func Int(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", x)
		}
		return int(x), nil
	case int32:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint8:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int(x), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// Bool coerces a boolean value.
func Bool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("not a bool: %T", v)
	}
	return b, nil
}

// Text coerces a string value.
func Text(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", v)
	}
	return s, nil
}

// Arg returns args[i] or an error naming the method.
func Arg(method string, args []any, i int) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s: missing argument %d", method, i)
	}
	return args[i], nil
}
