package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

// GroupControls is the node-group holding a device's controls.
const GroupControls = "Controls"

// Device members.
const (
	PropName           = "Name"
	PropOnline         = "Online"
	EventOnlineChanged = "OnlineChanged"
)

// Power members.
const (
	PropPowerState         = "PowerState"
	EventPowerStateChanged = "PowerStateChanged"
	MethodPowerOn          = "PowerOn"
	MethodPowerOff         = "PowerOff"
)

// Volume members.
const (
	PropVolumeRaw         = "VolumeRaw"
	PropVolumeLevel       = "VolumeLevel"
	PropIsMuted           = "IsMuted"
	MethodSetVolumeRaw    = "SetVolumeRaw"
	MethodSetVolumeLevel  = "SetVolumeLevel"
	MethodVolumeIncrement = "VolumeIncrement"
	MethodVolumeDecrement = "VolumeDecrement"
	MethodSetMuted        = "SetMuted"
	MethodToggleMute      = "ToggleMute"
)

// Proxy errors.
var (
	ErrUnknownMember = errors.New("unknown member")
	ErrRemote        = errors.New("remote call failed")
)

// subscriptions holds the event names the remote side subscribed to.
type subscriptions struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// apply records a subscribe or unsubscribe request. It reports false for
// other ops.
func (s *subscriptions) apply(e cmdtree.EventRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Op {
	case cmdtree.EventSubscribe:
		if s.names == nil {
			s.names = make(map[string]struct{})
		}
		s.names[e.Name] = struct{}{}
		return true
	case cmdtree.EventUnsubscribe:
		delete(s.names, e.Name)
		return true
	default:
		return false
	}
}

func (s *subscriptions) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}

func (s *subscriptions) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = nil
}

// push emits cmd through n. Pushing from an unbound node is not an error;
// the remote side will read the value when it binds.
func push(n *cmdtree.BaseNode, logger *slog.Logger, cmd *cmdtree.CommandNode) {
	err := n.Emit(context.Background(), cmd)
	if err == nil || logger == nil {
		return
	}
	if errors.Is(err, cmdtree.ErrNotBound) {
		logger.Debug("push dropped", "error", err)
		return
	}
	logger.Warn("push failed", "error", err)
}

func unhandled(logger *slog.Logger, kind, name string) {
	if logger != nil {
		logger.Debug("unhandled member", "kind", kind, "name", name)
	}
}
