package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

func startListener(t *testing.T, h cmdtree.Handler) *Listener {
	t.Helper()
	l, err := NewListener(ListenerConfig{
		Address: "127.0.0.1:0",
		Handle: func(ctx context.Context, s *Stream) {
			_ = s.Serve(ctx, h)
		},
	})
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func TestListenerServesStreams(t *testing.T) {
	host := newTestHandler(powerReply)
	l := startListener(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newTestHandler(nil)
	s, err := Dial(ctx, l.Addr().String(), StreamConfig{})
	require.NoError(t, err)
	go func() { _ = s.Serve(ctx, client) }()

	require.NoError(t, s.SendCommand(ctx, cmdtree.NewCommand("root").GetProperty("Power")))
	assert.Equal(t, "root", receive(t, host.commands).Name)
	assert.Equal(t, "root", receive(t, client.results).Name)

	assert.Eventually(t, func() bool { return l.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Eventually(t, func() bool { return l.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestListenerStopClosesStreams(t *testing.T) {
	l := startListener(t, newTestHandler(nil))

	s, err := Dial(context.Background(), l.Addr().String(), StreamConfig{})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), newTestHandler(nil)) }()

	assert.Eventually(t, func() bool { return l.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Stop())
	assert.NoError(t, receive(t, done))
	assert.Zero(t, l.ConnectionCount())
	assert.NoError(t, l.Stop(), "second stop is a no-op")
}

func TestListenerRequiresHandle(t *testing.T) {
	_, err := NewListener(ListenerConfig{})
	assert.Error(t, err)
}

func TestListenerDefaultAddress(t *testing.T) {
	l, err := NewListener(ListenerConfig{Handle: func(context.Context, *Stream) {}})
	require.NoError(t, err)
	assert.Equal(t, ":4990", l.config.Address)
	assert.Nil(t, l.Addr())
}

func TestDialFailure(t *testing.T) {
	l := startListener(t, newTestHandler(nil))
	addr := l.Addr().String()
	require.NoError(t, l.Stop())

	_, err := Dial(context.Background(), addr, StreamConfig{})
	assert.Error(t, err)
}
