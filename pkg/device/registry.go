package device

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// entry is a registered control with the tags captured at add time.
type entry struct {
	control Control
	caps    []Capability
}

// Registry is the thread-safe set of controls belonging to one device.
//
// Controls are indexed by id and by every capability tag they declared when
// added. All public methods are safe for concurrent use; control code
// (Close) is never invoked while the registry lock is held.
type Registry struct {
	mu sync.RWMutex

	// Primary index by control id.
	controls map[int]entry

	// Capability index; each list keeps insertion order.
	byCapability map[Capability][]Control

	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		controls:     make(map[int]entry),
		byCapability: make(map[Capability][]Control),
	}
}

// Add registers a control and indexes it under each capability it declares.
// Returns ErrDuplicateID if the id is already present; the registry is left
// unchanged in that case.
func (r *Registry) Add(control Control) error {
	if control == nil {
		return errors.New("nil control")
	}
	caps := normalizeCapabilities(control.Capabilities())
	id := control.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, exists := r.controls[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	r.controls[id] = entry{control: control, caps: caps}
	for _, c := range caps {
		r.byCapability[c] = append(r.byCapability[c], control)
	}
	return nil
}

// Get returns the control with the given id, or ErrNotFound.
func (r *Registry) Get(id int) (Control, error) {
	control, ok := r.TryGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return control, nil
}

// TryGet returns the control with the given id and whether it was found.
func (r *Registry) TryGet(id int) (Control, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.controls[id]
	if !ok {
		return nil, false
	}
	return e.control, true
}

// Contains reports whether a control with the given id is registered.
func (r *Registry) Contains(id int) bool {
	_, ok := r.TryGet(id)
	return ok
}

// Remove unregisters the control with the given id from the primary index
// and from every capability index. The control is not closed.
// Returns whether anything was removed.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.controls[id]
	if !ok {
		return false
	}
	delete(r.controls, id)

	for _, c := range e.caps {
		list := r.byCapability[c]
		idx := slices.IndexFunc(list, func(ctl Control) bool { return ctl == e.control })
		if idx < 0 {
			continue
		}
		list = slices.Delete(slices.Clone(list), idx, idx+1)
		if len(list) == 0 {
			delete(r.byCapability, c)
		} else {
			r.byCapability[c] = list
		}
	}
	return true
}

// CapabilitiesOf returns the tags captured when the control was added.
func (r *Registry) CapabilitiesOf(id int) ([]Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.controls[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.caps), true
}

// FirstOf returns the earliest-added control still registered under tag.
func (r *Registry) FirstOf(tag Capability) (Control, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byCapability[tag]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// AllOf returns a snapshot of the controls registered under tag,
// in insertion order.
func (r *Registry) AllOf(tag Capability) []Control {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byCapability[tag])
}

// GetTyped returns the control at id after checking that it was added with
// tag. A control that exists without the tag yields a *CapabilityError.
func (r *Registry) GetTyped(id int, tag Capability) (Control, error) {
	r.mu.RLock()
	e, ok := r.controls[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !HasCapability(e.caps, tag) {
		return nil, &CapabilityError{ID: id, Requested: tag, Actual: slices.Clone(e.caps)}
	}
	return e.control, nil
}

// Controls returns a snapshot of all controls ordered by ascending id.
func (r *Registry) Controls() []Control {
	r.mu.RLock()
	ids := slices.Sorted(maps.Keys(r.controls))
	out := make([]Control, len(ids))
	for i, id := range ids {
		out[i] = r.controls[id].control
	}
	r.mu.RUnlock()
	return out
}

// IDs returns the registered control ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.controls))
}

// Each calls fn for every control in ascending id order until fn returns
// false. It iterates a snapshot, so fn may add or remove controls.
func (r *Registry) Each(fn func(Control) bool) {
	for _, c := range r.Controls() {
		if !fn(c) {
			return
		}
	}
}

// Len returns the number of registered controls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controls)
}

// Close closes every held control and clears all indexes.
// Later calls are no-ops. Adds after Close fail with ErrRegistryClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ids := slices.Sorted(maps.Keys(r.controls))
	held := make([]Control, len(ids))
	for i, id := range ids {
		held[i] = r.controls[id].control
	}
	r.controls = make(map[int]entry)
	r.byCapability = make(map[Capability][]Control)
	r.mu.Unlock()

	var errs []error
	for _, c := range held {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing control %d: %w", c.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// GetAs returns the control at id as T after checking tag.
func GetAs[T any](r *Registry, id int, tag Capability) (T, error) {
	var zero T
	c, err := r.GetTyped(id, tag)
	if err != nil {
		return zero, err
	}
	typed, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: control %d tagged %q is %T", ErrCapabilityMismatch, id, tag, c)
	}
	return typed, nil
}

// FirstAs returns the first control registered under tag that is a T.
func FirstAs[T any](r *Registry, tag Capability) (T, bool) {
	for _, c := range r.AllOf(tag) {
		if typed, ok := c.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

// AllAs returns every control registered under tag that is a T,
// in insertion order.
func AllAs[T any](r *Registry, tag Capability) []T {
	var out []T
	for _, c := range r.AllOf(tag) {
		if typed, ok := c.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
