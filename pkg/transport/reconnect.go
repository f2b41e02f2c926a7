package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConnState is the state of a Reconnector.
type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a transport.
type DialFunc func(ctx context.Context) (Transport, error)

// ConnectedFunc uses a freshly dialed transport and returns when the
// connection is over. The Reconnector closes the transport afterwards.
type ConnectedFunc func(ctx context.Context, t Transport) error

// ReconnectConfig configures a Reconnector.
type ReconnectConfig struct {
	Backoff BackoffConfig

	// DialTimeout bounds each dial attempt. Zero uses DefaultDialTimeout.
	DialTimeout time.Duration

	// OnStateChange is called outside the lock on every transition.
	OnStateChange func(from, to ConnState)

	// Logger receives dial failures. Nil disables logging.
	Logger *slog.Logger
}

// Reconnector keeps a transport connected, redialing with backoff when the
// connection drops or a dial fails.
type Reconnector struct {
	dial      DialFunc
	connected ConnectedFunc
	cfg       ReconnectConfig
	backoff   *Backoff

	mu    sync.RWMutex
	state ConnState
}

// NewReconnector creates a reconnector.
func NewReconnector(dial DialFunc, connected ConnectedFunc, cfg ReconnectConfig) *Reconnector {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &Reconnector{
		dial:      dial,
		connected: connected,
		cfg:       cfg,
		backoff:   NewBackoff(cfg.Backoff),
	}
}

// State returns the current state.
func (r *Reconnector) State() ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Attempts returns the number of failed dials since the last success.
func (r *Reconnector) Attempts() int {
	return r.backoff.Attempts()
}

// Run dials and redials until ctx is done. It returns ctx.Err().
func (r *Reconnector) Run(ctx context.Context) error {
	defer r.setState(StateClosed)

	r.setState(StateConnecting)
	for {
		t, err := r.dialOnce(ctx)
		if err == nil {
			r.backoff.Reset()
			r.setState(StateConnected)
			err = r.connected(ctx, t)
			_ = t.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := r.backoff.Next()
		if r.cfg.Logger != nil {
			r.cfg.Logger.Warn("connection lost, redialing",
				"error", err, "attempt", r.backoff.Attempts(), "delay", delay)
		}
		r.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (r *Reconnector) dialOnce(ctx context.Context) (Transport, error) {
	dctx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	defer cancel()
	return r.dial(dctx)
}

func (r *Reconnector) setState(s ConnState) {
	r.mu.Lock()
	old := r.state
	r.state = s
	fn := r.cfg.OnStateChange
	r.mu.Unlock()

	if fn != nil && old != s {
		fn(old, s)
	}
}
