package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/ramp"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

type mirrorSet struct {
	dev   *MirrorDevice
	power *MirrorPower
	vol   *MirrorVolume
}

func newMirror(t *testing.T, mute bool) mirrorSet {
	t.Helper()
	md := NewMirrorDevice(7, "", nil)
	mp := NewMirrorPower(md.Device, 1, "Power", nil)
	mv := NewMirrorVolume(md.Device, 2, "Volume", MirrorVolumeConfig{Mute: mute})
	require.NoError(t, md.AddControl(mp))
	require.NoError(t, md.AddControl(mv))
	t.Cleanup(func() { _ = md.Close() })
	return mirrorSet{dev: md, power: mp, vol: mv}
}

func TestMirrorInitializeSynchronizes(t *testing.T) {
	dev, pwr, vol := projector(t, volume.DefaultConfig())
	require.NoError(t, pwr.PowerOff())
	require.NoError(t, vol.SetVolumeRaw(40))
	require.NoError(t, vol.SetMuted(true))
	dev.SetOnline(true)

	m := newMirror(t, true)
	l := newLink(NewDeviceNode(dev, nil), m.dev)

	require.NoError(t, l.mirror.Initialize(context.Background()))

	assert.Equal(t, 1, l.mirrorSent, "one folded declaration")
	assert.Zero(t, l.hostSent)
	assert.Equal(t, "Projector", m.dev.Name())
	assert.True(t, m.dev.IsOnline())
	assert.Equal(t, power.PowerOff, m.power.State())
	assert.Equal(t, 40.0, m.vol.VolumeRaw())
	assert.InDelta(t, 0.4, m.vol.Level(), 1e-9)
	assert.True(t, m.vol.IsMuted())
}

func TestMirrorActionsRoundTrip(t *testing.T) {
	dev, pwr, vol := projector(t, volume.DefaultConfig())
	m := newMirror(t, true)
	l := newLink(NewDeviceNode(dev, nil), m.dev)
	require.NoError(t, l.mirror.Initialize(context.Background()))

	var transitions []power.StateChanged
	m.power.StateChanged().Subscribe(func(c power.StateChanged) { transitions = append(transitions, c) })

	require.NoError(t, m.power.PowerOn())
	assert.Equal(t, power.PowerOn, pwr.State())
	assert.Equal(t, power.PowerOn, m.power.State())
	assert.NoError(t, m.power.LastError())
	require.Len(t, transitions, 1)
	assert.Equal(t, power.StateChanged{Old: power.Unknown, New: power.PowerOn}, transitions[0])

	require.NoError(t, m.vol.SetVolumeRaw(55))
	assert.Equal(t, 55.0, vol.VolumeRaw())
	assert.Equal(t, 55.0, m.vol.VolumeRaw())

	require.NoError(t, m.vol.ToggleMute())
	assert.True(t, vol.IsMuted())
	assert.True(t, m.vol.IsMuted())

	dev.SetOnline(true)
	assert.True(t, m.dev.IsOnline())
}

func TestMirrorRampDrivesRemoteVolume(t *testing.T) {
	dev, _, vol := projector(t, volume.DefaultConfig())
	m := newMirror(t, true)
	l := newLink(NewDeviceNode(dev, nil), m.dev)
	require.NoError(t, l.mirror.Initialize(context.Background()))
	require.NoError(t, m.vol.SetVolumeRaw(50))

	sched := ramp.NewManualScheduler()
	r := ramp.NewLeveledRepeater(m.vol, ramp.LeveledConfig{
		Config:      ramp.Config{Scheduler: sched},
		InitialStep: 2,
		RepeatStep:  1,
	})
	defer r.Close()

	require.NoError(t, r.Hold(ramp.Up))
	assert.Equal(t, 52.0, vol.VolumeRaw())

	sched.Advance(749 * time.Millisecond)
	r.Release()
	sched.Advance(time.Second)

	assert.Equal(t, 53.0, vol.VolumeRaw())
	assert.Equal(t, 53.0, m.vol.VolumeRaw())
}

func TestMirrorPowerSeesTransientStates(t *testing.T) {
	dev := device.NewDevice(3, "Display")
	sched := ramp.NewManualScheduler()
	pwr := power.NewSequencedControl(dev, 1, "Power", nil,
		power.SequenceConfig{WarmUp: 2 * time.Second, Scheduler: sched}, power.Config{})
	require.NoError(t, dev.AddControl(pwr))
	t.Cleanup(func() { _ = dev.Close() })

	m := newMirror(t, false)
	l := newLink(NewDeviceNode(dev, nil), m.dev)
	require.NoError(t, l.mirror.Initialize(context.Background()))

	var transitions []power.StateChanged
	m.power.StateChanged().Subscribe(func(c power.StateChanged) { transitions = append(transitions, c) })

	require.NoError(t, m.power.PowerOn())
	assert.Equal(t, power.Warming, m.power.State())

	sched.Advance(2 * time.Second)
	assert.Equal(t, power.PowerOn, m.power.State())

	require.Len(t, transitions, 2)
	assert.Equal(t, power.StateChanged{Old: power.Unknown, New: power.Warming, ExpectedDuration: 2 * time.Second}, transitions[0])
	assert.Equal(t, power.StateChanged{Old: power.Warming, New: power.PowerOn}, transitions[1])
}

func TestMirrorRecordsRemoteFailures(t *testing.T) {
	dev, _, _ := projector(t, volume.Config{Min: 0, Max: 100})
	m := newMirror(t, true)
	l := newLink(NewDeviceNode(dev, nil), m.dev)
	require.NoError(t, l.mirror.Initialize(context.Background()))

	require.NoError(t, m.vol.SetMuted(true), "the call itself is delivered")
	assert.ErrorIs(t, m.vol.LastError(), ErrRemote)
	assert.False(t, m.vol.IsMuted())

	require.NoError(t, m.vol.SetVolumeRaw(10))
	assert.NoError(t, m.vol.LastError())
}

func TestMirrorVolumeSkipsUndecodableValues(t *testing.T) {
	m := newMirror(t, true)
	var changes []volume.VolumeChanged
	m.vol.VolumeChanged().Subscribe(func(c volume.VolumeChanged) { changes = append(changes, c) })

	m.vol.HandleCommand(cmdtree.NewCommand("").
		ChangedProperty(PropVolumeRaw, "loud").
		ChangedProperty(PropVolumeLevel, 0.3).
		ChangedProperty(PropIsMuted, true))

	assert.Zero(t, m.vol.VolumeRaw(), "bad value leaves the level as it was")
	assert.InDelta(t, 0.3, m.vol.Level(), 1e-9)
	assert.True(t, m.vol.IsMuted())
	require.Len(t, changes, 1)

	m.vol.HandleResult(cmdtree.NewResult("").
		AddProperty(PropVolumeRaw, uint64(25)).
		AddProperty(PropIsMuted, "maybe"))

	assert.Equal(t, 25.0, m.vol.VolumeRaw())
	assert.True(t, m.vol.IsMuted())
}

func TestMirrorWithoutMute(t *testing.T) {
	m := newMirror(t, false)
	assert.ErrorIs(t, m.vol.SetMuted(true), volume.ErrMuteNotSupported)
	assert.ErrorIs(t, m.vol.ToggleMute(), volume.ErrMuteNotSupported)
	assert.False(t, device.HasCapability(m.vol.Capabilities(), device.CapVolumeMute))
	assert.Equal(t, volume.DefaultStep, m.vol.DefaultStep())
}

func TestMirrorUnboundActionsFail(t *testing.T) {
	dev, _, _ := projector(t, volume.DefaultConfig())
	m := newMirror(t, true)

	assert.ErrorIs(t, m.power.PowerOn(), cmdtree.ErrNotBound)

	l := newLink(NewDeviceNode(dev, nil), m.dev)
	require.NoError(t, l.mirror.Initialize(context.Background()))
	require.NoError(t, m.vol.Increment())

	require.True(t, l.mirror.Deinitialize(m.vol))
	assert.ErrorIs(t, m.vol.Increment(), cmdtree.ErrNotBound)

	got, err := l.mirror.Resolve(context.Background(), controls(2))
	require.NoError(t, err)
	assert.Same(t, m.vol, got)
	assert.NoError(t, m.vol.Increment())
}

func TestMirrorControlsByCapability(t *testing.T) {
	m := newMirror(t, true)

	p, err := device.GetAs[power.Controller](m.dev.Controls(), 1, device.CapPower)
	require.NoError(t, err)
	assert.Same(t, m.power, p)

	v, ok := device.FirstAs[volume.Controller](m.dev.Controls(), device.CapVolumeMute)
	require.True(t, ok)
	assert.Same(t, m.vol, v)
}
