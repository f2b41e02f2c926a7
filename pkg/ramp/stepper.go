package ramp

// Direction is the sense of a held gesture.
type Direction uint8

const (
	// Up increments the bound control.
	Up Direction = iota + 1

	// Down decrements the bound control.
	Down
)

// String returns "UP" or "DOWN".
func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Stepper is a control that can be nudged one default step at a time.
type Stepper interface {
	Increment() error
	Decrement() error
}

// LevelStepper is a control that accepts explicit step sizes.
type LevelStepper interface {
	IncrementBy(step float64) error
	DecrementBy(step float64) error

	// DefaultStep is the step size used when none is configured.
	DefaultStep() float64
}
