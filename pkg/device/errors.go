package device

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	ErrDuplicateID        = errors.New("duplicate control ID")
	ErrNotFound           = errors.New("control not found")
	ErrCapabilityMismatch = errors.New("capability mismatch")
	ErrRegistryClosed     = errors.New("registry closed")
	ErrForeignControl     = errors.New("control belongs to another device")
)

// CapabilityError reports a typed lookup against a control that does not
// carry the requested capability.
type CapabilityError struct {
	// ID is the control that was looked up.
	ID int

	// Requested is the capability the caller asked for.
	Requested Capability

	// Actual is the capability set captured when the control was added.
	Actual []Capability
}

// Error names both the requested and the actual capabilities.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("control %d: requested capability %q, has %s",
		e.ID, e.Requested, formatCapabilities(e.Actual))
}

// Is makes errors.Is(err, ErrCapabilityMismatch) hold.
func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityMismatch
}
