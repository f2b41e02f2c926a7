package device

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ControlInfo is the stable cross-device address of a control.
// It is comparable and can be used as a map key.
type ControlInfo struct {
	DeviceID  int `yaml:"device" cbor:"1,keyasint"`
	ControlID int `yaml:"control" cbor:"2,keyasint"`
}

// Compare orders by device id, then control id.
func (c ControlInfo) Compare(o ControlInfo) int {
	if r := cmp.Compare(c.DeviceID, o.DeviceID); r != 0 {
		return r
	}
	return cmp.Compare(c.ControlID, o.ControlID)
}

// String returns "device:control".
func (c ControlInfo) String() string {
	return strconv.Itoa(c.DeviceID) + ":" + strconv.Itoa(c.ControlID)
}

// ParseControlInfo parses the "device:control" form produced by String.
func ParseControlInfo(s string) (ControlInfo, error) {
	dev, ctl, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ControlInfo{}, fmt.Errorf("invalid control info %q: missing ':'", s)
	}
	d, err := strconv.Atoi(dev)
	if err != nil {
		return ControlInfo{}, fmt.Errorf("invalid device id in %q: %w", s, err)
	}
	c, err := strconv.Atoi(ctl)
	if err != nil {
		return ControlInfo{}, fmt.Errorf("invalid control id in %q: %w", s, err)
	}
	return ControlInfo{DeviceID: d, ControlID: c}, nil
}

// SortControlInfos sorts infos in place by device id, then control id.
func SortControlInfos(infos []ControlInfo) {
	slices.SortFunc(infos, ControlInfo.Compare)
}
