package device

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testControl is a minimal control used across the package tests.
type testControl struct {
	*BaseControl
	closeCount int
	closeErr   error
	onClose    func()
}

func newTestControl(parent *Device, id int, caps ...Capability) *testControl {
	return &testControl{BaseControl: NewBaseControl(parent, id, fmt.Sprintf("ctl-%d", id), caps...)}
}

func (c *testControl) Close() error {
	c.closeCount++
	if c.onClose != nil {
		c.onClose()
	}
	return c.closeErr
}

// mutableControl reports whatever capabilities it currently holds.
type mutableControl struct {
	id   int
	caps []Capability
}

func (c *mutableControl) ID() int                    { return c.id }
func (c *mutableControl) Name() string               { return "mutable" }
func (c *mutableControl) Parent() *Device            { return nil }
func (c *mutableControl) Capabilities() []Capability { return c.caps }
func (c *mutableControl) Close() error               { return nil }

func TestRegistryAddGet(t *testing.T) {
	r := NewRegistry()
	c := newTestControl(nil, 4, CapPower)

	require.NoError(t, r.Add(c))

	got, err := r.Get(4)
	require.NoError(t, err)
	assert.Same(t, c, got)

	got, ok := r.TryGet(4)
	assert.True(t, ok)
	assert.Same(t, c, got)

	assert.True(t, r.Contains(4))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookupMiss(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(7)
	assert.ErrorIs(t, err, ErrNotFound)

	c, ok := r.TryGet(7)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestRegistryDuplicateLeavesRegistryUnchanged(t *testing.T) {
	sequences := [][]int{
		{1, 1},
		{1, 2, 1},
		{3, 2, 1, 2},
		{5, 4, 3, 2, 1, 5},
	}

	for _, ids := range sequences {
		t.Run(fmt.Sprint(ids), func(t *testing.T) {
			r := NewRegistry()
			seen := map[int]*testControl{}

			for _, id := range ids {
				c := newTestControl(nil, id, CapPower)
				beforeIDs := r.IDs()
				beforePower := r.AllOf(CapPower)

				err := r.Add(c)
				if _, dup := seen[id]; dup {
					require.ErrorIs(t, err, ErrDuplicateID)
					assert.Equal(t, beforeIDs, r.IDs())
					assert.Equal(t, beforePower, r.AllOf(CapPower))
					got, _ := r.TryGet(id)
					assert.Same(t, seen[id], got, "original control kept")
					continue
				}
				require.NoError(t, err)
				seen[id] = c
			}
			assert.Equal(t, len(seen), r.Len())
		})
	}
}

func TestRegistryCapabilityConsistencyAfterRemove(t *testing.T) {
	caps := []Capability{CapVolumeRaw, CapVolumeLevel, CapVolumeMute}
	r := NewRegistry()
	keep := newTestControl(nil, 1, caps...)
	drop := newTestControl(nil, 2, caps...)
	require.NoError(t, r.Add(keep))
	require.NoError(t, r.Add(drop))

	assert.True(t, r.Remove(2))
	assert.False(t, r.Remove(2), "second remove reports nothing removed")
	assert.Zero(t, drop.closeCount, "remove does not close")

	for _, tag := range caps {
		all := r.AllOf(tag)
		require.Len(t, all, 1, tag)
		assert.Same(t, keep, all[0])
	}

	assert.True(t, r.Remove(1))
	for _, tag := range caps {
		assert.Empty(t, r.AllOf(tag))
		_, ok := r.FirstOf(tag)
		assert.False(t, ok)
	}
}

// reentrantControl reads the registry from its accessors.
type reentrantControl struct {
	mutableControl
	r *Registry
}

func (c *reentrantControl) ID() int {
	_ = c.r.Len()
	return c.id
}

func (c *reentrantControl) Capabilities() []Capability {
	_ = c.r.Len()
	return c.caps
}

func TestRegistryDoesNotCallControlsUnderLock(t *testing.T) {
	r := NewRegistry()
	ctl := &reentrantControl{mutableControl: mutableControl{id: 3, caps: []Capability{CapPower}}, r: r}
	other := newTestControl(nil, 4, CapPower)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, r.Add(ctl))
		assert.NoError(t, r.Add(other))
		assert.True(t, r.Remove(3))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "registry called a control while holding its lock")
	}

	all := r.AllOf(CapPower)
	require.Len(t, all, 1)
	assert.Same(t, other, all[0])
}

func TestRegistryFirstOfInsertionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(newTestControl(nil, 9, CapPower)))
	require.NoError(t, r.Add(newTestControl(nil, 3, CapPower)))
	require.NoError(t, r.Add(newTestControl(nil, 5, CapVolumeRaw)))

	first, ok := r.FirstOf(CapPower)
	require.True(t, ok)
	assert.Equal(t, 9, first.ID(), "insertion order, not id order")

	ids := []int{}
	for _, c := range r.AllOf(CapPower) {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []int{9, 3}, ids)

	r.Remove(9)
	first, ok = r.FirstOf(CapPower)
	require.True(t, ok)
	assert.Equal(t, 3, first.ID())
}

func TestRegistryCapabilitiesFixedAtAdd(t *testing.T) {
	r := NewRegistry()
	c := &mutableControl{id: 1, caps: []Capability{CapPower}}
	require.NoError(t, r.Add(c))

	// The control changes its mind after registration.
	c.caps = []Capability{CapVolumeRaw}

	_, ok := r.FirstOf(CapVolumeRaw)
	assert.False(t, ok)

	got, err := r.GetTyped(1, CapPower)
	require.NoError(t, err)
	assert.Same(t, c, got)

	tags, ok := r.CapabilitiesOf(1)
	require.True(t, ok)
	assert.Equal(t, []Capability{CapPower}, tags)

	// Removal uses the captured tags.
	r.Remove(1)
	assert.Empty(t, r.AllOf(CapPower))
}

func TestRegistryGetTypedMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(newTestControl(nil, 2, CapVolumeRaw, CapVolumeMute)))

	_, err := r.GetTyped(2, CapPower)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapabilityMismatch)

	var capErr *CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.ID)
	assert.Equal(t, CapPower, capErr.Requested)
	assert.Equal(t, []Capability{CapVolumeRaw, CapVolumeMute}, capErr.Actual)
	assert.Contains(t, err.Error(), "power")
	assert.Contains(t, err.Error(), "volume-raw volume-mute")

	_, err = r.GetTyped(99, CapPower)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAs(t *testing.T) {
	r := NewRegistry()
	c := newTestControl(nil, 1, CapPower)
	require.NoError(t, r.Add(c))
	require.NoError(t, r.Add(&mutableControl{id: 2, caps: []Capability{CapPower}}))

	got, err := GetAs[*testControl](r, 1, CapPower)
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = GetAs[*testControl](r, 2, CapPower)
	assert.ErrorIs(t, err, ErrCapabilityMismatch)

	first, ok := FirstAs[*mutableControl](r, CapPower)
	require.True(t, ok)
	assert.Equal(t, 2, first.ID())

	assert.Len(t, AllAs[*testControl](r, CapPower), 1)
}

func TestRegistryIterationOrderedByID(t *testing.T) {
	r := NewRegistry()
	for _, id := range []int{7, 2, 5, 1} {
		require.NoError(t, r.Add(newTestControl(nil, id)))
	}

	var ids []int
	r.Each(func(c Control) bool {
		ids = append(ids, c.ID())
		return true
	})
	assert.Equal(t, []int{1, 2, 5, 7}, ids)

	ids = ids[:0]
	r.Each(func(c Control) bool {
		ids = append(ids, c.ID())
		return len(ids) < 2
	})
	assert.Equal(t, []int{1, 2}, ids, "stops when fn returns false")
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	for id := 1; id <= 3; id++ {
		require.NoError(t, r.Add(newTestControl(nil, id, CapPower)))
	}

	snapshot := r.Controls()
	powerSnapshot := r.AllOf(CapPower)

	// Mutate from inside iteration.
	assert.NotPanics(t, func() {
		r.Each(func(c Control) bool {
			r.Remove(c.ID())
			_ = r.Add(newTestControl(nil, c.ID()+10, CapPower))
			return true
		})
	})

	require.Len(t, snapshot, 3)
	for i, c := range snapshot {
		assert.Equal(t, i+1, c.ID())
	}
	require.Len(t, powerSnapshot, 3)
	assert.Equal(t, 1, powerSnapshot[0].ID())
	assert.Equal(t, []int{11, 12, 13}, r.IDs())
}

func TestRegistryCloseClosesControlsOutsideLock(t *testing.T) {
	r := NewRegistry()
	a := newTestControl(nil, 1, CapPower)
	b := newTestControl(nil, 2, CapVolumeRaw)
	b.closeErr = errors.New("boom")

	// A close callback that re-enters the registry would deadlock if the
	// lock were held.
	a.onClose = func() { _ = r.Len() }

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing control 2")

	assert.Equal(t, 1, a.closeCount)
	assert.Equal(t, 1, b.closeCount)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.AllOf(CapPower))

	assert.NoError(t, r.Close(), "second close is a no-op")
	assert.Equal(t, 1, a.closeCount)

	assert.ErrorIs(t, r.Add(newTestControl(nil, 1)), ErrRegistryClosed)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := base*100 + i
				_ = r.Add(newTestControl(nil, id, CapPower))
				_ = r.AllOf(CapPower)
				_ = r.Controls()
				if i%2 == 0 {
					r.Remove(id)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 8*25, r.Len())
	assert.Len(t, r.AllOf(CapPower), 8*25)
}
