package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Connection errors.
var (
	ErrConnectionFailed  = errors.New("connection failed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrConnectionLost    = errors.New("connection lost")
)

// DefaultConnectTimeout bounds a single connection attempt and the wait
// for an attempt already in flight.
const DefaultConnectTimeout = 10 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection and no retry.
	StateDisconnected State = iota

	// StateConnecting indicates a caller-initiated attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
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

// ConnectFunc establishes the underlying connection.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// ConnectTimeout bounds each attempt and each wait (default: 10s).
	ConnectTimeout time.Duration

	// Backoff configures reconnection delays (default: 1s x2 up to 30s).
	Backoff BackoffConfig

	// Clock drives backoff waits (default: real clock).
	Clock clockwork.Clock

	// Logger for debug output (optional).
	Logger *slog.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		Backoff:        DefaultBackoffConfig(),
	}
}

// Manager runs the connection state machine with single-flight connects
// and automatic reconnection.
type Manager struct {
	mu sync.Mutex

	state State

	// settled is closed when the in-flight attempt resolves.
	settled chan struct{}
	lastErr error

	// lostPending marks a loss reported while an attempt was in flight.
	lostPending bool

	// noRetry stops the reconnect loop after the current attempt.
	noRetry bool

	// everConnected makes later caller-initiated connects run the
	// reconnected hook as well.
	everConnected bool

	config    Config
	backoff   *Backoff
	connectFn ConnectFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
	onReconnected  func(ctx context.Context)
}

// NewManager creates a Manager and starts its reconnect loop.
// Close must be called to release it.
func NewManager(connectFn ConnectFunc, config Config) *Manager {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.Backoff == (BackoffConfig{}) {
		config.Backoff = DefaultBackoffConfig()
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	settled := make(chan struct{})
	close(settled)

	m := &Manager{
		state:       StateDisconnected,
		settled:     settled,
		config:      config,
		backoff:     NewBackoffWithConfig(config.Backoff),
		connectFn:   connectFn,
		ctx:         ctx,
		cancel:      cancel,
		reconnectCh: make(chan struct{}, 1),
	}

	m.wg.Add(1)
	go m.reconnectLoop()

	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the error of the most recent failed attempt.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect ensures the connection is up.
//
// Connected returns nil at once. While an attempt is in flight the caller
// waits for it, up to the connect timeout. From Disconnected a new attempt
// is made.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil
	case StateClosed:
		m.mu.Unlock()
		return ErrConnectionClosed
	case StateConnecting, StateReconnecting:
		settled := m.settled
		m.mu.Unlock()
		return m.wait(ctx, settled)
	}

	m.state = StateConnecting
	m.settled = make(chan struct{})
	m.lostPending = false
	m.noRetry = false
	var onReconnected func(context.Context)
	if m.everConnected {
		onReconnected = m.onReconnected
	}
	m.mu.Unlock()

	m.notifyStateChange(StateDisconnected, StateConnecting)

	attemptCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	stop := context.AfterFunc(m.ctx, cancel)
	err := m.connectFn(attemptCtx)
	stop()
	timedOut := err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err == nil && onReconnected != nil {
		onReconnected(m.ctx)
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	if err == nil && m.lostPending {
		err = ErrConnectionLost
	}
	if err != nil {
		m.state = StateDisconnected
		m.lastErr = err
		m.settleLocked()
		m.mu.Unlock()

		m.notifyStateChange(StateConnecting, StateDisconnected)
		if timedOut {
			return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	m.state = StateConnected
	m.everConnected = true
	m.lastErr = nil
	m.backoff.Reset()
	m.settleLocked()
	onConnected := m.onConnected
	m.mu.Unlock()

	m.notifyStateChange(StateConnecting, StateConnected)
	if onConnected != nil {
		onConnected()
	}
	return nil
}

// wait blocks until settled closes, then reports the outcome.
func (m *Manager) wait(ctx context.Context, settled <-chan struct{}) error {
	timer := m.config.Clock.NewTimer(m.config.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-settled:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return ErrConnectionTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateConnected:
		return nil
	case StateClosed:
		return ErrConnectionClosed
	default:
		if m.lastErr != nil {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, m.lastErr)
		}
		return ErrConnectionFailed
	}
}

// NotifyConnectionLost reports an unexpected loss of the live connection.
// From Connected it starts automatic reconnection; during an attempt it
// marks that attempt as failed.
func (m *Manager) NotifyConnectionLost() {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.state = StateReconnecting
		m.settled = make(chan struct{})
		onDisconnected := m.onDisconnected
		m.mu.Unlock()

		m.notifyStateChange(StateConnected, StateReconnecting)
		if onDisconnected != nil {
			onDisconnected()
		}
		m.triggerReconnect()
	case StateConnecting, StateReconnecting:
		m.lostPending = true
		m.mu.Unlock()
	default:
		m.mu.Unlock()
	}
}

// Disconnect reports a loss that must not be retried automatically, such
// as a server close without reconnect permission. The next Connect starts
// a fresh attempt.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.state = StateDisconnected
		m.lastErr = ErrConnectionLost
		onDisconnected := m.onDisconnected
		m.mu.Unlock()

		m.notifyStateChange(StateConnected, StateDisconnected)
		if onDisconnected != nil {
			onDisconnected()
		}
	case StateConnecting:
		m.lostPending = true
		m.mu.Unlock()
	case StateReconnecting:
		m.lostPending = true
		m.noRetry = true
		m.mu.Unlock()
	default:
		m.mu.Unlock()
	}
}

// Close shuts the manager down and waits for the reconnect loop to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	oldState := m.state
	m.state = StateClosed
	m.settleLocked()
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateClosed)

	m.cancel()
	m.wg.Wait()
}

// settleLocked releases waiters of the current attempt. Idempotent.
func (m *Manager) settleLocked() {
	select {
	case <-m.settled:
	default:
		close(m.settled)
	}
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.reconnect()
		}
	}
}

// reconnect retries with backoff until connected, closed, or told to stop.
func (m *Manager) reconnect() {
	for {
		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		m.mu.Lock()
		onReconnecting := m.onReconnecting
		m.mu.Unlock()
		if onReconnecting != nil {
			onReconnecting(attempt, delay)
		}
		m.debugLog("reconnecting", "attempt", attempt, "delay", delay)

		select {
		case <-m.ctx.Done():
			return
		case <-m.config.Clock.After(delay):
		}

		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		if m.noRetry {
			m.giveUpLocked()
			return
		}
		m.lostPending = false
		onReconnected := m.onReconnected
		m.mu.Unlock()

		err := m.attempt(onReconnected)

		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		if err == nil && m.lostPending {
			err = ErrConnectionLost
		}
		if err != nil {
			m.lastErr = err
			if m.noRetry {
				m.giveUpLocked()
				return
			}
			// Release waiters of this attempt; later callers wait for the next.
			m.settleLocked()
			m.settled = make(chan struct{})
			m.mu.Unlock()

			m.debugLog("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		m.state = StateConnected
		m.lastErr = nil
		m.backoff.Reset()
		m.settleLocked()
		onConnected := m.onConnected
		m.mu.Unlock()

		m.notifyStateChange(StateReconnecting, StateConnected)
		if onConnected != nil {
			onConnected()
		}
		return
	}
}

// attempt runs one reconnection: connect, then the reconnected hook.
func (m *Manager) attempt(onReconnected func(context.Context)) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	err := m.connectFn(ctx)
	cancel()
	if err != nil {
		return err
	}
	if onReconnected != nil {
		onReconnected(m.ctx)
	}
	return nil
}

// giveUpLocked moves Reconnecting to Disconnected. Called with mu held;
// releases it.
func (m *Manager) giveUpLocked() {
	m.state = StateDisconnected
	m.noRetry = false
	if m.lastErr == nil {
		m.lastErr = ErrConnectionLost
	}
	m.settleLocked()
	m.mu.Unlock()

	m.notifyStateChange(StateReconnecting, StateDisconnected)
}

func (m *Manager) notifyStateChange(oldState, newState State) {
	m.mu.Lock()
	fn := m.onStateChange
	m.mu.Unlock()

	m.debugLog("state change", "from", oldState, "to", newState)
	if fn != nil {
		fn(oldState, newState)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for entering Connected.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for leaving Connected.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each backoff wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// OnReconnected sets the hook run after a successful automatic reconnect
// and before the state becomes Connected. The context is cancelled by Close.
func (m *Manager) OnReconnected(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnected = fn
}

// BackoffAttempts returns the number of reconnection attempts since the
// last successful connection.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
