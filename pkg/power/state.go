package power

import "time"

// State is a power state.
type State uint8

const (
	// Unknown is the initial state before the hardware has reported.
	Unknown State = iota
	PowerOff
	PowerOn
	Warming
	Cooling
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case PowerOff:
		return "POWER_OFF"
	case PowerOn:
		return "POWER_ON"
	case Warming:
		return "WARMING"
	case Cooling:
		return "COOLING"
	default:
		return "INVALID"
	}
}

// IsValid reports whether s is one of the defined states.
func (s State) IsValid() bool {
	return s <= Cooling
}

// IsTransient reports whether s is Warming or Cooling.
func (s State) IsTransient() bool {
	return s == Warming || s == Cooling
}

// StateChanged is raised on every power state transition.
type StateChanged struct {
	Old State
	New State

	// ExpectedDuration hints how long a transient state should last.
	ExpectedDuration time.Duration
}
