package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Keep-alive defaults.
const (
	// DefaultPingInterval is the interval between client pings.
	DefaultPingInterval = 15 * time.Second

	// DefaultServerTimeout is how long the server may stay silent before
	// the connection is considered lost.
	DefaultServerTimeout = 30 * time.Second
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between client pings.
	PingInterval time.Duration

	// ServerTimeout is the maximum silence tolerated from the server.
	ServerTimeout time.Duration

	// Clock drives the timers (default: real clock).
	Clock clockwork.Clock
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:  DefaultPingInterval,
		ServerTimeout: DefaultServerTimeout,
	}
}

// KeepAlive sends periodic pings and reports server silence.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func() error
	onTimeout func()

	pingsSent atomic.Uint64

	mu           sync.Mutex
	lastReceived time.Time
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
}

// NewKeepAlive creates a keep-alive monitor. onTimeout runs on the monitor
// goroutine at most once per Start.
func NewKeepAlive(config KeepAliveConfig, sendPing func() error, onTimeout func()) *KeepAlive {
	if config.PingInterval == 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.ServerTimeout == 0 {
		config.ServerTimeout = DefaultServerTimeout
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
	}
}

// Start begins monitoring. Calling Start on a running monitor is a no-op.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.lastReceived = ka.config.Clock.Now()
	ka.stopCh = make(chan struct{})
	ka.done = make(chan struct{})
	stopCh, done := ka.stopCh, ka.done
	ka.mu.Unlock()

	go ka.loop(ctx, stopCh, done)
}

// Stop halts monitoring and waits for the monitor goroutine to exit.
// It must not be called from onTimeout.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	if !ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = false
	close(ka.stopCh)
	done := ka.done
	ka.mu.Unlock()

	<-done
}

// Received records that the server sent something.
func (ka *KeepAlive) Received() {
	ka.mu.Lock()
	ka.lastReceived = ka.config.Clock.Now()
	ka.mu.Unlock()
}

// IsRunning reports whether monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// PingsSent returns the number of pings attempted since creation.
func (ka *KeepAlive) PingsSent() uint64 {
	return ka.pingsSent.Load()
}

func (ka *KeepAlive) loop(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	clock := ka.config.Clock
	ticker := clock.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()
	timer := clock.NewTimer(ka.config.ServerTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.Chan():
			ka.pingsSent.Add(1)
			// A failed send surfaces through the read loop or the timeout.
			_ = ka.sendPing()
		case <-timer.Chan():
			ka.mu.Lock()
			silent := clock.Since(ka.lastReceived)
			ka.mu.Unlock()

			if silent < ka.config.ServerTimeout {
				timer.Reset(ka.config.ServerTimeout - silent)
				continue
			}
			if ka.onTimeout != nil {
				ka.onTimeout()
			}
			return
		}
	}
}
