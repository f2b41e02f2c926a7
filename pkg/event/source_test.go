package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceRaiseOrder(t *testing.T) {
	var s Source[int]
	var got []string

	s.Subscribe(func(v int) { got = append(got, "a") })
	s.Subscribe(func(v int) { got = append(got, "b") })

	s.Raise(1)

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, s.Len())
}

func TestSourceUnsubscribe(t *testing.T) {
	var s Source[string]
	calls := 0

	h := s.Subscribe(func(string) { calls++ })
	require.NotZero(t, h)

	assert.True(t, s.Unsubscribe(h))
	assert.False(t, s.Unsubscribe(h), "second removal reports nothing removed")

	s.Raise("x")
	assert.Zero(t, calls)
}

func TestSourceNilHandler(t *testing.T) {
	var s Source[int]
	assert.Zero(t, s.Subscribe(nil))
	assert.Zero(t, s.Len())
}

func TestSourceMutationDuringRaise(t *testing.T) {
	var s Source[int]
	var second Handle
	secondCalls := 0
	lateCalls := 0

	s.Subscribe(func(int) {
		// Removing a later handler and adding a new one must not affect
		// the delivery already in progress.
		s.Unsubscribe(second)
		s.Subscribe(func(int) { lateCalls++ })
	})
	second = s.Subscribe(func(int) { secondCalls++ })

	s.Raise(1)

	assert.Equal(t, 1, secondCalls, "snapshot still includes the removed handler")
	assert.Zero(t, lateCalls, "handler added during raise is not called")

	s.Raise(2)
	assert.Equal(t, 1, secondCalls)
	assert.Equal(t, 1, lateCalls)
}

func TestSourceClear(t *testing.T) {
	var s Source[int]
	s.Subscribe(func(int) {})
	s.Clear()
	assert.Zero(t, s.Len())
}
