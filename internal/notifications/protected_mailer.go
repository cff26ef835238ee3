package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("mail relay circuit open")

const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

type ProtectedMailerConfig struct {
	Timeout          time.Duration // per send, covers dial + DATA
	FailureThreshold int           // consecutive failed sends before opening
	Cooldown         time.Duration // open time before a trial send is allowed
	HalfOpenMaxCalls int           // concurrent trial sends while half open

	// OnStateChange is called with the new state, under the breaker lock.
	OnStateChange func(state string)
}

// ProtectedMailer wraps a Mailer with a per-send timeout and a circuit breaker
// so a dead SMTP relay fails sends fast instead of holding requests open.
type ProtectedMailer struct {
	inner Mailer
	cfg   ProtectedMailerConfig
	now   func() time.Time

	mu       sync.Mutex
	state    string
	failures int
	openedAt time.Time
	trials   int
}

func NewProtectedMailer(inner Mailer, cfg ProtectedMailerConfig) *ProtectedMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	m := &ProtectedMailer{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
	}
	m.setState(CircuitClosed)
	return m
}

func (m *ProtectedMailer) Send(ctx context.Context, msg Message) error {
	trial, ok := m.admit()
	if !ok {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.inner.Send(sendCtx, msg)
	m.record(trial, err)

	return err
}

func (m *ProtectedMailer) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// admit decides whether a send may reach the relay. trial is true when the
// send counts against the half-open allowance.
func (m *ProtectedMailer) admit() (trial bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case CircuitOpen:
		if m.now().Sub(m.openedAt) < m.cfg.Cooldown {
			return false, false
		}
		m.setState(CircuitHalfOpen)
		m.trials = 1
		return true, true
	case CircuitHalfOpen:
		if m.trials >= m.cfg.HalfOpenMaxCalls {
			return false, false
		}
		m.trials++
		return true, true
	default:
		return false, true
	}
}

func (m *ProtectedMailer) record(trial bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trial && m.trials > 0 {
		m.trials--
	}

	if err == nil {
		m.failures = 0
		if m.state != CircuitClosed {
			m.setState(CircuitClosed)
		}
		return
	}

	m.failures++

	switch {
	case m.state == CircuitHalfOpen:
		m.trip()
	case m.state == CircuitClosed && m.failures >= m.cfg.FailureThreshold:
		m.trip()
	}
}

// trip opens the circuit. Caller holds m.mu.
func (m *ProtectedMailer) trip() {
	m.openedAt = m.now()
	m.trials = 0
	m.setState(CircuitOpen)
}

// setState records a transition. Caller holds m.mu.
func (m *ProtectedMailer) setState(state string) {
	m.state = state
	if m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(state)
	}
}
