package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepAliveDefaults(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{}, func() error { return nil }, nil)
	if ka.config.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", ka.config.PingInterval, DefaultPingInterval)
	}
	if ka.config.ServerTimeout != DefaultServerTimeout {
		t.Errorf("ServerTimeout = %v, want %v", ka.config.ServerTimeout, DefaultServerTimeout)
	}
	if ka.config.Clock == nil {
		t.Error("Clock is nil")
	}
}

func TestKeepAliveSendsPings(t *testing.T) {
	var pings atomic.Int32
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:  10 * time.Millisecond,
		ServerTimeout: time.Second,
	}, func() error {
		pings.Add(1)
		return nil
	}, nil)

	ka.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	ka.Stop()

	if pings.Load() < 2 {
		t.Errorf("pings = %d, want at least 2", pings.Load())
	}
	if uint64(pings.Load()) != ka.PingsSent() {
		t.Errorf("PingsSent() = %d, want %d", ka.PingsSent(), pings.Load())
	}
	if ka.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	timedOut := make(chan struct{})
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:  time.Second,
		ServerTimeout: 30 * time.Millisecond,
	}, func() error { return nil }, func() { close(timedOut) })

	ka.Start(context.Background())
	defer ka.Stop()

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("onTimeout not called")
	}
}

func TestKeepAliveReceivedDefersTimeout(t *testing.T) {
	var timedOut atomic.Bool
	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:  time.Second,
		ServerTimeout: 60 * time.Millisecond,
	}, func() error { return nil }, func() { timedOut.Store(true) })

	ka.Start(context.Background())
	for i := 0; i < 6; i++ {
		time.Sleep(20 * time.Millisecond)
		ka.Received()
	}
	ka.Stop()

	if timedOut.Load() {
		t.Error("timed out despite regular traffic")
	}
}

func TestKeepAliveStopsOnContext(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{PingInterval: time.Second}, func() error { return nil }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ka.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		ka.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked after context cancel")
	}
}
