package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults.
const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.25
)

// BackoffConfig configures a Backoff. Zero fields use the defaults; a
// negative Jitter disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff calculates exponential redial delays with jitter.
type Backoff struct {
	mu sync.Mutex

	cfg      BackoffConfig
	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff calculator.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	switch {
	case cfg.Jitter == 0:
		cfg.Jitter = DefaultJitter
	case cfg.Jitter < 0:
		cfg.Jitter = 0
	}
	return &Backoff{
		cfg:     cfg,
		current: cfg.Initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.cfg.Jitter * b.rng.Float64())
	}

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.cfg.Multiplier), b.cfg.Max)
	return delay
}

// Reset returns to the initial delay. Call it after a successful dial.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the next base delay without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
