package cmdtree

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Key addresses one entry of a node-group. It holds either an integer or a
// string and is comparable.
type Key struct {
	i     int64
	s     string
	isStr bool
}

// IntKey returns an integer key.
func IntKey(i int) Key {
	return Key{i: int64(i)}
}

// StringKey returns a string key.
func StringKey(s string) Key {
	return Key{s: s, isStr: true}
}

// IsString reports whether k is a string key.
func (k Key) IsString() bool {
	return k.isStr
}

// Int returns the integer value and whether k is an integer key.
func (k Key) Int() (int, bool) {
	if k.isStr {
		return 0, false
	}
	return int(k.i), true
}

// Text returns the string value and whether k is a string key.
func (k Key) Text() (string, bool) {
	return k.s, k.isStr
}

// String renders integer keys bare and string keys quoted.
func (k Key) String() string {
	if k.isStr {
		return strconv.Quote(k.s)
	}
	return strconv.FormatInt(k.i, 10)
}

// MarshalCBOR encodes the key as a bare integer or text string.
func (k Key) MarshalCBOR() ([]byte, error) {
	if k.isStr {
		return cbor.Marshal(k.s)
	}
	return cbor.Marshal(k.i)
}

// UnmarshalCBOR accepts an integer or a text string.
func (k *Key) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case uint64:
		if x > math.MaxInt64 {
			return fmt.Errorf("key %d out of range", x)
		}
		*k = Key{i: int64(x)}
	case int64:
		*k = Key{i: x}
	case string:
		*k = StringKey(x)
	default:
		return fmt.Errorf("invalid key type %T", v)
	}
	return nil
}
