package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for frames.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility: unknown keys are skipped and
	// duplicate keys keep the last value.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeFrame validates and encodes a frame.
func EncodeFrame(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return Marshal(f)
}

// DecodeFrame decodes and validates a frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// PeekKind reads only the kind and sequence of an encoded frame.
func PeekKind(data []byte) (FrameKind, uint32, error) {
	var peek struct {
		Kind FrameKind `cbor:"1,keyasint"`
		Seq  uint32    `cbor:"2,keyasint,omitempty"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return 0, 0, fmt.Errorf("failed to peek frame: %w", err)
	}
	if !peek.Kind.IsValid() {
		return 0, 0, fmt.Errorf("%w: kind %d", ErrInvalidFrame, peek.Kind)
	}
	return peek.Kind, peek.Seq, nil
}

// Clone creates a deep copy of the CBOR data by re-encoding.
// Dynamic values come back in their decoded form.
func Clone[T any](v T) (T, error) {
	var result T
	data, err := Marshal(v)
	if err != nil {
		return result, err
	}
	err = Unmarshal(data, &result)
	return result, err
}

// Equal compares two values by their CBOR encoding.
func Equal(a, b any) bool {
	dataA, errA := Marshal(a)
	dataB, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(dataA, dataB)
}
