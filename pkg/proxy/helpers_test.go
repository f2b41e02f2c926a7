package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/device"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/power"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/volume"
)

type recordingSender struct {
	sent []*cmdtree.CommandNode
}

func (r *recordingSender) SendCommand(_ context.Context, cmd *cmdtree.CommandNode) error {
	r.sent = append(r.sent, cmd)
	return nil
}

type recordingLogger struct {
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) { r.events = append(r.events, e) }

func (r *recordingLogger) errors() []log.Event {
	var out []log.Event
	for _, e := range r.events {
		if e.Category == log.CategoryError {
			out = append(out, e)
		}
	}
	return out
}

// projector builds a device with {1: power, 2: volume}.
func projector(t *testing.T, volCfg volume.Config) (*device.Device, *power.Control, *volume.Control) {
	t.Helper()

	dev := device.NewDevice(7, "Projector")
	pwr := power.NewControl(dev, 1, "Power", nil, power.Config{})
	vol, err := volume.NewControl(dev, 2, "Volume", nil, volCfg)
	require.NoError(t, err)
	require.NoError(t, dev.AddControl(pwr))
	require.NoError(t, dev.AddControl(vol))
	t.Cleanup(func() { _ = dev.Close() })
	return dev, pwr, vol
}

// link connects an originator and a mirror session in memory. Commands are
// delivered synchronously and non-empty results are handed back.
type link struct {
	host   *cmdtree.Session
	mirror *cmdtree.Session

	hostSent   int
	mirrorSent int
}

func newLink(root cmdtree.Node, mirrorRoot cmdtree.Node) *link {
	l := &link{}
	l.host = cmdtree.NewSession(root, cmdtree.SenderFunc(func(ctx context.Context, cmd *cmdtree.CommandNode) error {
		l.hostSent++
		if res := l.mirror.HandleCommand(ctx, cmd); !res.IsEmpty() {
			l.host.HandleResult(ctx, res)
		}
		return nil
	}), cmdtree.Config{Name: "host", Role: log.RoleOriginator})
	l.mirror = cmdtree.NewSession(mirrorRoot, cmdtree.SenderFunc(func(ctx context.Context, cmd *cmdtree.CommandNode) error {
		l.mirrorSent++
		if res := l.host.HandleCommand(ctx, cmd); !res.IsEmpty() {
			l.mirror.HandleResult(ctx, res)
		}
		return nil
	}), cmdtree.Config{Name: "mirror", Role: log.RoleMirror})
	return l
}
