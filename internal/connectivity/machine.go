package connectivity

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
)

// Default retry policy.
const (
	DefaultMaxAttempts = 30
	DefaultRetryDelay  = time.Second
)

// Link is the wireless association capability.
type Link interface {
	// Associate makes one attempt to associate the link.
	Associate(ctx context.Context) error

	// Associated reports whether the link is currently associated.
	Associated() bool
}

// Session is the broker session capability.
type Session interface {
	// Connect makes one attempt to open the session.
	Connect(ctx context.Context) error

	// Connected reports whether the session is currently open.
	Connected() bool

	// Send hands one message to the session without waiting for delivery.
	Send(topic, msg string) error

	// Service performs per-cycle housekeeping on an open session.
	Service(ctx context.Context) error
}

// Source supplies the entries replayed after every reconnect.
// *device.Registry satisfies it.
type Source interface {
	All() iter.Seq2[string, device.Payload]
}

// Logger defines the logging interface used by the Machine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the retry policy and destination topic.
type Config struct {
	// MaxAttempts bounds each retry loop within one Check.
	MaxAttempts int

	// RetryDelay is slept after every failed attempt.
	RetryDelay time.Duration

	// Topic receives every device message.
	Topic string
}

// TransitionFunc observes a state change. It runs on the goroutine calling
// Check and must not call back into the Machine's Check.
type TransitionFunc func(from, to State)

// SentFunc observes a message accepted by the session. replay is true for
// messages sent while replaying the registry.
type SentFunc func(address, msg string, replay bool)

// Stats are cumulative counters since the Machine was created.
type Stats struct {
	Published   uint64
	Suppressed  uint64
	SendErrors  uint64
	Replays     uint64
	Transitions uint64
}

// Machine is the connectivity state machine.
//
// Check and Publish are meant to be called from a single supervisor
// goroutine. State and Stats may be read from any goroutine.
type Machine struct {
	link    Link
	session Session
	source  Source
	cfg     Config
	logger  Logger

	mu    sync.RWMutex
	state State

	onTransition []TransitionFunc
	onSent       []SentFunc

	// sleep waits between failed attempts.
	sleep func(ctx context.Context, d time.Duration) error

	published   atomic.Uint64
	suppressed  atomic.Uint64
	sendErrors  atomic.Uint64
	replays     atomic.Uint64
	transitions atomic.Uint64
}

// New creates a Machine in AssocDown.
//
// Parameters:
//   - link: Wireless association capability
//   - session: Broker session capability
//   - source: Registry replayed after each reconnect
//   - cfg: Retry policy and topic; zero values take the defaults
func New(link Link, session Session, source Source, cfg Config) *Machine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Machine{
		link:    link,
		session: session,
		source:  source,
		cfg:     cfg,
		logger:  noopLogger{},
		state:   AssocDown,
		sleep:   sleepContext,
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// OnTransition registers fn to be called after every state change.
// Register observers before the supervisor starts.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.onTransition = append(m.onTransition, fn)
}

// OnSent registers fn to be called for every message the session accepts.
// Register observers before the supervisor starts.
func (m *Machine) OnSent(fn SentFunc) {
	m.onSent = append(m.onSent, fn)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns a snapshot of the counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Published:   m.published.Load(),
		Suppressed:  m.suppressed.Load(),
		SendErrors:  m.sendErrors.Load(),
		Replays:     m.replays.Load(),
		Transitions: m.transitions.Load(),
	}
}

// Check runs one supervisory check of both links.
//
// In order:
//  1. Link not associated: enter AssocDown and retry association. Give up
//     for this cycle when the budget is spent.
//  2. AssocDown with the link up: enter AssocUpSessionDown.
//  3. AssocUpSessionUp with the session gone: enter AssocUpSessionDown.
//  4. AssocUpSessionDown: retry the session. On success enter
//     AssocUpSessionUp and replay the registry.
//  5. AssocUpSessionUp: service the session.
//
// No session attempt is made while the link is down.
//
// Returns:
//   - error: ErrAssociationFailed or ErrSessionFailed when a retry budget
//     ran out; both are transient and the next Check retries
func (m *Machine) Check(ctx context.Context) error {
	if !m.link.Associated() {
		m.setState(AssocDown)

		if err := m.retry(ctx, "association", m.link.Associate, m.link.Associated); err != nil {
			m.logger.Warn("wireless association failed",
				"attempts", m.cfg.MaxAttempts,
				"error", err,
			)
			return fmt.Errorf("%w: %w", ErrAssociationFailed, err)
		}
		m.logger.Info("wireless link associated")
	}

	if m.State() == AssocDown {
		m.setState(AssocUpSessionDown)
	}

	if m.State() == AssocUpSessionUp && !m.session.Connected() {
		m.logger.Warn("mqtt session lost")
		m.setState(AssocUpSessionDown)
	}

	if m.State() == AssocUpSessionDown {
		if err := m.retry(ctx, "session", m.session.Connect, m.session.Connected); err != nil {
			m.logger.Warn("mqtt session failed",
				"attempts", m.cfg.MaxAttempts,
				"error", err,
			)
			return fmt.Errorf("%w: %w", ErrSessionFailed, err)
		}
		m.setState(AssocUpSessionUp)
		m.replay()
	}

	if err := m.session.Service(ctx); err != nil {
		m.logger.Warn("mqtt session service reported errors", "error", err)
	}
	return nil
}

// Publish forwards one device message if the session is up.
//
// Outside AssocUpSessionUp nothing is sent and Publish returns false;
// the registry replay on the next reconnect delivers the latest payload.
// A send error is logged and counted, and also reported as false.
func (m *Machine) Publish(address string, p device.Payload) bool {
	if !m.State().CanPublish() {
		m.suppressed.Add(1)
		return false
	}
	return m.send(address, device.Format(address, p), false)
}

// replay sends every registry entry. The traversal is a snapshot, so the
// source may be written to concurrently.
func (m *Machine) replay() {
	m.replays.Add(1)

	sent, failed := 0, 0
	for address, p := range m.source.All() {
		if m.send(address, device.Format(address, p), true) {
			sent++
		} else {
			failed++
		}
	}

	m.logger.Info("published devices", "count", sent, "failed", failed)
}

func (m *Machine) send(address, msg string, replay bool) bool {
	if err := m.session.Send(m.cfg.Topic, msg); err != nil {
		m.sendErrors.Add(1)
		m.logger.Warn("publish failed", "address", address, "error", err)
		return false
	}

	m.published.Add(1)
	m.logger.Debug("published", "address", address, "message", msg, "replay", replay)
	for _, fn := range m.onSent {
		fn(address, msg, replay)
	}
	return true
}

// retry calls attempt until ok reports true or MaxAttempts attempts have
// failed. RetryDelay is slept after every failed attempt.
func (m *Machine) retry(ctx context.Context, what string, attempt func(context.Context) error, ok func() bool) error {
	var lastErr error
	for n := 1; n <= m.cfg.MaxAttempts; n++ {
		err := attempt(ctx)
		if err == nil && ok() {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("%s not established after attempt", what)
		}
		lastErr = err

		m.logger.Debug("connection attempt failed",
			"link", what,
			"attempt", n,
			"max_attempts", m.cfg.MaxAttempts,
			"error", err,
		)

		if err := m.sleep(ctx, m.cfg.RetryDelay); err != nil {
			return err
		}
	}
	return lastErr
}

// setState records a new state and notifies observers if it changed.
func (m *Machine) setState(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}

	m.transitions.Add(1)
	m.logger.Info("connectivity state changed", "from", from.String(), "to", to.String())
	for _, fn := range m.onTransition {
		fn(from, to)
	}
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
