package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultPort is the default TCP port for device sessions.
const DefaultPort = 4990

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Address to listen on (e.g., ":4990" or "127.0.0.1:4990").
	Address string

	// Stream is the template for accepted streams. SessionID is replaced
	// per connection.
	Stream StreamConfig

	// Handle serves one accepted stream. It runs on its own goroutine and
	// the stream is closed once it returns.
	Handle func(ctx context.Context, s *Stream)

	// Logger receives diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Listener accepts TCP connections and serves each as a Stream.
type Listener struct {
	config   ListenerConfig
	listener net.Listener

	streams   map[*Stream]struct{}
	streamsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewListener creates a listener. Handle is required.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Handle == nil {
		return nil, errors.New("Handle is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	return &Listener{
		config:  config,
		streams: make(map[*Stream]struct{}),
	}, nil
}

// Start begins accepting connections.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener already running")
	}

	listener, err := net.Listen("tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.listener = listener
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running.Store(true)

	if l.config.Logger != nil {
		l.config.Logger.Info("listening", "addr", listener.Addr().String())
	}

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Stop closes the listener and every open stream, then waits for the
// Handle callbacks to return.
func (l *Listener) Stop() error {
	if !l.running.Swap(false) {
		return nil
	}
	l.cancel()
	_ = l.listener.Close()

	l.streamsMu.RLock()
	for s := range l.streams {
		_ = s.Close()
	}
	l.streamsMu.RUnlock()

	l.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	if l.listener != nil {
		return l.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of open streams.
func (l *Listener) ConnectionCount() int {
	l.streamsMu.RLock()
	defer l.streamsMu.RUnlock()
	return len(l.streams)
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for l.running.Load() {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.running.Load() && l.config.Logger != nil {
				l.config.Logger.Warn("accept failed", "error", err)
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		l.wg.Add(1)
		go l.handleConnection(conn)
	}
}

func (l *Listener) handleConnection(conn net.Conn) {
	defer l.wg.Done()

	cfg := l.config.Stream
	cfg.SessionID = ""
	s := NewStream(conn, cfg)

	l.streamsMu.Lock()
	l.streams[s] = struct{}{}
	l.streamsMu.Unlock()

	if l.config.Logger != nil {
		l.config.Logger.Info("connection accepted", "remote", s.RemoteAddr(), "session", s.SessionID())
	}

	l.config.Handle(l.ctx, s)
	_ = s.Close()

	l.streamsMu.Lock()
	delete(l.streams, s)
	l.streamsMu.Unlock()

	if l.config.Logger != nil {
		l.config.Logger.Info("connection closed", "remote", s.RemoteAddr(), "session", s.SessionID())
	}
}
