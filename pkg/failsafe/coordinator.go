package failsafe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Coordinator defaults.
const (
	// DefaultFailsafeInterval is the silence after which the timer refreshes.
	DefaultFailsafeInterval = 30 * time.Second

	// DefaultCheckPeriod is the interval between staleness checks.
	DefaultCheckPeriod = 5 * time.Second
)

// Coordinator errors.
var (
	ErrRefreshFailed = errors.New("refresh failed")
	ErrInvalidState  = errors.New("invalid coordinator state")
)

// State represents the coordinator lifecycle state.
type State uint8

const (
	// StateIdle indicates the coordinator was created but not started.
	StateIdle State = iota

	// StateActive indicates the coordinator is refreshing.
	StateActive

	// StateStopped indicates the coordinator was stopped. It cannot restart.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Trigger is the cause of a refresh.
type Trigger uint8

const (
	// TriggerStart is the initial refresh.
	TriggerStart Trigger = iota

	// TriggerNotification is a refresh caused by a matching notification.
	TriggerNotification

	// TriggerFailsafe is a refresh caused by the staleness check.
	TriggerFailsafe
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerNotification:
		return "notification"
	case TriggerFailsafe:
		return "failsafe"
	default:
		return "unknown"
	}
}

// RefreshFunc re-fetches a view's state. ctx is cancelled by Stop.
type RefreshFunc func(ctx context.Context) error

// Source delivers notifications. OnUpdate returns a function that removes
// the listener.
type Source interface {
	OnUpdate(fn func(topic.Notification)) func()
}

// Config configures a Coordinator.
type Config struct {
	// FailsafeInterval is the silence tolerated before the timer refreshes
	// (default: 30s).
	FailsafeInterval time.Duration

	// CheckPeriod is the interval between staleness checks (default: 5s).
	CheckPeriod time.Duration

	// Name identifies the view in log output.
	Name string

	// Clock drives the timers (default: real clock).
	Clock clockwork.Clock

	// Logger for operational output (optional).
	Logger *slog.Logger

	// ProtocolLogger receives coordinator state changes (optional).
	ProtocolLogger log.Logger

	// OnError is called with every refresh failure (optional). It runs on
	// the coordinator goroutine.
	OnError func(err error)
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		FailsafeInterval: DefaultFailsafeInterval,
		CheckPeriod:      DefaultCheckPeriod,
	}
}

// Coordinator refreshes one view on notifications and as a failsafe when
// the notification channel is silent.
type Coordinator struct {
	config  Config
	clock   clockwork.Clock
	scope   topic.Matcher
	refresh RefreshFunc
	plog    log.Logger

	mu          sync.Mutex
	state       State
	lastSignal  time.Time
	lastRefresh time.Time
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}

	signal chan struct{}

	refreshes atomic.Uint64
	failures  atomic.Uint64
	checks    atomic.Uint64
}

// NewCoordinator creates an idle coordinator for the given scope. A nil
// scope matches no notification; only Signal and the timer refresh then.
func NewCoordinator(scope topic.Matcher, refresh RefreshFunc, config Config) *Coordinator {
	if config.FailsafeInterval <= 0 {
		config.FailsafeInterval = DefaultFailsafeInterval
	}
	if config.CheckPeriod <= 0 {
		config.CheckPeriod = DefaultCheckPeriod
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		config:  config,
		clock:   clock,
		scope:   scope,
		refresh: refresh,
		plog:    log.OrNoop(config.ProtocolLogger),
		signal:  make(chan struct{}, 1),
	}
}

// Start activates the coordinator: it subscribes to src (which may be nil),
// performs one immediate refresh and starts the staleness check.
func (c *Coordinator) Start(src Source) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrInvalidState, state)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.state = StateActive
	c.lastSignal = c.clock.Now()
	c.cancel = cancel
	c.done = make(chan struct{})
	ticker := c.clock.NewTicker(c.config.CheckPeriod)
	go c.run(ctx, ticker, c.done)
	c.mu.Unlock()

	c.logState(StateIdle, StateActive)
	c.debugLog("failsafe: started",
		"interval", c.config.FailsafeInterval,
		"check", c.config.CheckPeriod)

	if src == nil {
		return nil
	}
	unsubscribe := src.OnUpdate(c.handleNotification)

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Stop cancels the staleness check, removes the notification listener and
// waits for an in-flight refresh to return. It is idempotent. Stop must not
// be called from the refresh function.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	old := c.state
	if old == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
		<-done
	}

	c.logState(old, StateStopped)
	c.debugLog("failsafe: stopped", "refreshes", c.refreshes.Load())
}

// Signal resets the staleness clock and requests a refresh, as if a
// matching notification had arrived. It is a no-op unless active.
func (c *Coordinator) Signal() {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.lastSignal = c.clock.Now()
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refreshes returns the number of refreshes performed.
func (c *Coordinator) Refreshes() uint64 {
	return c.refreshes.Load()
}

// Failures returns the number of failed refreshes.
func (c *Coordinator) Failures() uint64 {
	return c.failures.Load()
}

// LastRefresh returns when the last refresh started, or the zero time.
func (c *Coordinator) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

func (c *Coordinator) handleNotification(n topic.Notification) {
	if c.scope == nil || !c.scope.Matches(n) {
		return
	}
	c.Signal()
}

func (c *Coordinator) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	c.doRefresh(ctx, TriggerStart)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.signal:
			c.doRefresh(ctx, TriggerNotification)
		case <-ticker.Chan():
			if c.checkStale() {
				c.doRefresh(ctx, TriggerFailsafe)
			}
			c.checks.Add(1)
		}
	}
}

// checkStale reports whether the last signal is older than the failsafe
// interval, and resets the clock if so.
func (c *Coordinator) checkStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if now.Sub(c.lastSignal) <= c.config.FailsafeInterval {
		return false
	}
	c.lastSignal = now
	return true
}

func (c *Coordinator) doRefresh(ctx context.Context, trigger Trigger) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	c.lastRefresh = c.clock.Now()
	c.mu.Unlock()
	c.refreshes.Add(1)

	if trigger == TriggerFailsafe {
		c.debugLog("failsafe: channel silent, refreshing")
	}

	err := c.invoke(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}

	c.failures.Add(1)
	err = fmt.Errorf("%w: %s: %w", ErrRefreshFailed, trigger, err)
	c.warnLog("failsafe: refresh failed", "trigger", trigger.String(), "error", err)
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}

func (c *Coordinator) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.refresh(ctx)
}

func (c *Coordinator) logState(oldState, newState State) {
	c.plog.Log(log.Event{
		Timestamp: c.clock.Now(),
		Layer:     log.LayerHub,
		Category:  log.CategoryState,
		Topic:     c.config.Name,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFailsafe,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})
}

func (c *Coordinator) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		if c.config.Name != "" {
			args = append(args, "view", c.config.Name)
		}
		c.config.Logger.Debug(msg, args...)
	}
}

func (c *Coordinator) warnLog(msg string, args ...any) {
	if c.config.Logger != nil {
		if c.config.Name != "" {
			args = append(args, "view", c.config.Name)
		}
		c.config.Logger.Warn(msg, args...)
	}
}
