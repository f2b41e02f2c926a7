package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/wire"
)

// DefaultDialTimeout bounds Dial when ctx carries no deadline.
const DefaultDialTimeout = 10 * time.Second

// StreamConfig configures a Stream.
type StreamConfig struct {
	// MaxMessageSize bounds frames in both directions. Zero uses
	// DefaultMaxMessageSize.
	MaxMessageSize uint32

	// SessionID tags protocol events. Empty generates a UUID.
	SessionID string

	// ProtocolLogger receives frame, state and error events.
	ProtocolLogger log.Logger

	// Logger receives diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Stream exchanges frames over a byte stream.
type Stream struct {
	conn   io.ReadWriteCloser
	framer *Framer
	cfg    StreamConfig
	plog   log.Logger
	remote string

	seq       atomic.Uint32
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps conn. The stream owns conn and closes it on Close.
func NewStream(conn io.ReadWriteCloser, cfg StreamConfig) *Stream {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	var remote string
	if c, ok := conn.(net.Conn); ok && c.RemoteAddr() != nil {
		remote = c.RemoteAddr().String()
	}

	framer := NewFramer(conn, cfg.MaxMessageSize)
	if cfg.ProtocolLogger != nil {
		framer.SetLogger(cfg.ProtocolLogger, cfg.SessionID, remote)
	}
	return &Stream{
		conn:   conn,
		framer: framer,
		cfg:    cfg,
		plog:   log.OrNoop(cfg.ProtocolLogger),
		remote: remote,
	}
}

// Dial connects to address over TCP.
func Dial(ctx context.Context, address string, cfg StreamConfig) (*Stream, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return NewStream(conn, cfg), nil
}

// SessionID returns the id tagging this stream's events.
func (s *Stream) SessionID() string {
	return s.cfg.SessionID
}

// RemoteAddr returns the peer address, or "" when the stream is not a
// network connection.
func (s *Stream) RemoteAddr() string {
	return s.remote
}

// SendCommand writes cmd as a command frame.
func (s *Stream) SendCommand(ctx context.Context, cmd *cmdtree.CommandNode) error {
	return s.send(ctx, wire.NewCommandFrame(s.seq.Add(1), cmd))
}

func (s *Stream) send(ctx context.Context, f *wire.Frame) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := wire.EncodeFrame(f)
	if err != nil {
		return err
	}
	return s.framer.WriteFrame(data)
}

// Serve reads frames until the peer hangs up, the stream is closed or ctx
// is done. Inbound commands are answered on this goroutine. A frame that
// fails to decode is reported and skipped; a framing error ends Serve.
func (s *Stream) Serve(ctx context.Context, h cmdtree.Handler) error {
	if h == nil {
		return ErrNoHandler
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logState("", "CONNECTED")
	defer s.logState("CONNECTED", "DISCONNECTED")

	for {
		data, err := s.framer.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || s.closed.Load() {
				return nil
			}
			s.reportError("read", err)
			return err
		}
		s.dispatch(ctx, h, data)
	}
}

func (s *Stream) dispatch(ctx context.Context, h cmdtree.Handler, data []byte) {
	f, err := wire.DecodeFrame(data)
	if err != nil {
		s.reportError("decode", err)
		return
	}

	switch f.Kind {
	case wire.KindCommand:
		res := h.HandleCommand(ctx, f.Command)
		if res == nil || res.IsEmpty() {
			return
		}
		if err := s.send(ctx, wire.NewResultFrame(f.Seq, res)); err != nil {
			s.reportError("reply", err)
		}
	case wire.KindResult:
		h.HandleResult(ctx, f.Result)
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Stream) logState(from, to string) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug("stream "+to, "session", s.cfg.SessionID, "remote", s.remote)
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.cfg.SessionID,
		Direction:  log.DirectionLocal,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		RemoteAddr: s.remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from,
			NewState: to,
		},
	})
}

func (s *Stream) reportError(where string, err error) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Warn("stream error", "session", s.cfg.SessionID, "where", where, "error", err)
	}
	layer := log.LayerTransport
	if where == "decode" {
		layer = log.LayerWire
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.cfg.SessionID,
		Direction:  log.DirectionIn,
		Layer:      layer,
		Category:   log.CategoryError,
		RemoteAddr: s.remote,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: where,
		},
	})
}
