package transport

import (
	"context"
	"errors"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

// Transport errors.
var (
	ErrClosed       = errors.New("transport closed")
	ErrNoHandler    = errors.New("no handler")
	ErrNotConnected = errors.New("not connected")
)

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Transport carries command trees to and from a remote session.
// Implemented by Stream, LoopEnd and MQTT.
type Transport interface {
	cmdtree.Sender

	// Serve delivers inbound frames to h until the transport is closed or
	// ctx is done.
	Serve(ctx context.Context, h cmdtree.Handler) error

	// Close releases the transport.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ FrameReadWriter = (*Framer)(nil)
	_ Transport       = (*Stream)(nil)
	_ Transport       = (*LoopEnd)(nil)
	_ Transport       = (*MQTT)(nil)
)
