package device

import (
	"slices"
	"strings"
)

// Capability is an explicit tag naming a behaviour a control supports.
type Capability string

// Core capability tags.
const (
	// CapPower marks controls with power on/off behaviour.
	CapPower Capability = "power"

	// CapVolumeRaw marks volume controls addressed by raw device level.
	CapVolumeRaw Capability = "volume-raw"

	// CapVolumeLevel marks volume controls that can step up and down.
	CapVolumeLevel Capability = "volume-level"

	// CapVolumeMute marks volume controls that can be muted.
	CapVolumeMute Capability = "volume-mute"
)

// String returns the tag text.
func (c Capability) String() string {
	return string(c)
}

// HasCapability reports whether caps contains c.
func HasCapability(caps []Capability, c Capability) bool {
	return slices.Contains(caps, c)
}

// normalizeCapabilities returns a copy of caps with empty and duplicate tags
// removed, keeping first-seen order.
func normalizeCapabilities(caps []Capability) []Capability {
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// formatCapabilities renders a tag set as "[a b c]".
func formatCapabilities(caps []Capability) string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return "[" + strings.Join(names, " ") + "]"
}
