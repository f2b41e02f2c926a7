package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/proxy"
)

func TestLoopbackDeliversSynchronously(t *testing.T) {
	a, b := NewLoopback()
	host := newTestHandler(powerReply)
	client := newTestHandler(nil)
	b.SetHandler(host)
	a.SetHandler(client)

	require.NoError(t, a.SendCommand(context.Background(), cmdtree.NewCommand("root").GetProperty("Power")))

	require.Len(t, host.commands, 1)
	require.Len(t, client.results, 1)
	v, ok := (<-client.results).Property("Power")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v.Value, "values pass through the codec")
}

func TestLoopbackWithoutPeerHandler(t *testing.T) {
	a, _ := NewLoopback()
	assert.ErrorIs(t, a.SendCommand(context.Background(), cmdtree.NewCommand("x")), ErrNoHandler)
}

func TestLoopbackClose(t *testing.T) {
	a, b := NewLoopback()
	b.SetHandler(newTestHandler(nil))
	a.SetHandler(newTestHandler(nil))

	done := make(chan error, 1)
	go func() { done <- b.Serve(context.Background(), newTestHandler(nil)) }()
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, b.Close())
	assert.NoError(t, receive(t, done))
	assert.ErrorIs(t, a.SendCommand(context.Background(), cmdtree.NewCommand("x")), ErrClosed)
	assert.ErrorIs(t, b.SendCommand(context.Background(), cmdtree.NewCommand("x")), ErrClosed)
	assert.NoError(t, b.Close())
}

func TestLoopbackServeHonorsContext(t *testing.T) {
	a, _ := NewLoopback()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Serve(ctx, newTestHandler(nil)), context.Canceled)
	assert.ErrorIs(t, a.Serve(context.Background(), nil), ErrNoHandler)
}

func TestLoopbackCarriesDeviceSessions(t *testing.T) {
	dev := device.NewDevice(3, "Display")
	pwr := power.NewControl(dev, 1, "Power", nil, power.Config{})
	require.NoError(t, dev.AddControl(pwr))
	require.NoError(t, pwr.PowerOn())
	t.Cleanup(func() { _ = dev.Close() })

	md := proxy.NewMirrorDevice(3, "", nil)
	mp := proxy.NewMirrorPower(md.Device, 1, "Power", nil)
	require.NoError(t, md.AddControl(mp))
	t.Cleanup(func() { _ = md.Close() })

	hostEnd, mirrorEnd := NewLoopback()
	hostSession := cmdtree.NewSession(proxy.NewDeviceNode(dev, nil), hostEnd, cmdtree.Config{Name: "host", Role: log.RoleOriginator})
	mirrorSession := cmdtree.NewSession(md, mirrorEnd, cmdtree.Config{Name: "mirror", Role: log.RoleMirror})
	hostEnd.SetHandler(hostSession)
	mirrorEnd.SetHandler(mirrorSession)

	ctx := context.Background()
	require.NoError(t, mirrorSession.Initialize(ctx))
	assert.Equal(t, "Display", md.Name())
	assert.Equal(t, power.PowerOn, mp.State())

	require.NoError(t, mp.PowerOff())
	assert.Equal(t, power.PowerOff, pwr.State())
	assert.Equal(t, power.PowerOff, mp.State(), "host pushes the change back")
}
