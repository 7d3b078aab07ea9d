// v1
// internal/breaker/breaker.go
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the wrapped call while the breaker
// is open (fast-fail).
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// State is the classic three-state breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a Breaker.
type Config struct {
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before a probe is allowed.
	Cooldown time.Duration
}

// Breaker guards an unreliable downstream (one per device endpoint). After
// FailureThreshold consecutive failures it fast-fails every call for
// Cooldown, then lets a single probe through; the probe's outcome decides
// between closing and re-opening.
type Breaker struct {
	name string
	cfg  Config
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New builds a breaker. Zero config fields fall back to 3 failures / 30s.
func New(name string, cfg Config, log *slog.Logger) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name: name,
		cfg:  cfg,
		log:  log.With(slog.String("breaker", name)),
		now:  time.Now,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do invokes fn under breaker protection and reports its error.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = true
		b.log.Info("breaker half-open, probing")
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		if b.state != Closed {
			b.log.Info("breaker closed after successful probe")
		}
		b.state = Closed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != Open {
			b.log.Warn("breaker opened", "consecutive_failures", b.failures)
		}
		b.state = Open
		b.openedAt = b.now()
	}
}
