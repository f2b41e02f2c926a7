package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/wire"
)

// LoopEnd is one side of an in-memory transport pair.
//
// Delivery is synchronous: SendCommand runs the peer's HandleCommand and,
// when the result is not empty, this end's HandleResult before returning.
// Both trees pass through the wire codec.
type LoopEnd struct {
	peer *LoopEnd

	mu        sync.RWMutex
	handler   cmdtree.Handler
	closed    bool
	done      chan struct{}
	closeOnce sync.Once

	seq atomic.Uint32
}

// NewLoopback returns two connected ends.
func NewLoopback() (*LoopEnd, *LoopEnd) {
	a := &LoopEnd{done: make(chan struct{})}
	b := &LoopEnd{done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// SetHandler installs the handler for inbound trees without blocking.
func (e *LoopEnd) SetHandler(h cmdtree.Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// Serve installs h and blocks until the end is closed or ctx is done.
func (e *LoopEnd) Serve(ctx context.Context, h cmdtree.Handler) error {
	if h == nil {
		return ErrNoHandler
	}
	e.SetHandler(h)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return nil
	}
}

// SendCommand delivers cmd to the peer.
func (e *LoopEnd) SendCommand(ctx context.Context, cmd *cmdtree.CommandNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	own, ok := e.state()
	if !ok {
		return ErrClosed
	}
	remote, ok := e.peer.state()
	if !ok {
		return ErrClosed
	}
	if remote == nil {
		return ErrNoHandler
	}

	in, err := roundTrip(wire.NewCommandFrame(e.seq.Add(1), cmd))
	if err != nil {
		return err
	}
	res := remote.HandleCommand(ctx, in.Command)
	if res == nil || res.IsEmpty() || own == nil {
		return nil
	}

	back, err := roundTrip(wire.NewResultFrame(in.Seq, res))
	if err != nil {
		return err
	}
	own.HandleResult(ctx, back.Result)
	return nil
}

// Close closes this end. Sends in either direction fail afterwards.
func (e *LoopEnd) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.done)
	})
	return nil
}

func (e *LoopEnd) state() (cmdtree.Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handler, !e.closed
}

func roundTrip(f *wire.Frame) (*wire.Frame, error) {
	data, err := wire.EncodeFrame(f)
	if err != nil {
		return nil, err
	}
	return wire.DecodeFrame(data)
}
