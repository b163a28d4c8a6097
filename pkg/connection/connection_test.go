package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := append(BackoffSequence(), MaxBackoff)
		for i, exp := range expected {
			base := b.Current()
			b.Next()
			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 20)
		for i := range samples {
			samples[i] = b.Peek()
		}

		limit := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))
		allSame := true
		for i, s := range samples {
			if s < InitialBackoff || s > limit {
				t.Errorf("Sample %d: %v out of range [%v, %v]", i, s, InitialBackoff, limit)
			}
			if s != samples[0] {
				allSame = false
			}
		}
		if allSame {
			t.Error("all jittered samples are identical")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 5; i++ {
			b.Next()
		}
		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
		if b.Attempts() != len(expected) {
			t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(expected))
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func fastConfig() Config {
	return Config{
		ConnectTimeout: 200 * time.Millisecond,
		Backoff: BackoffConfig{
			Initial:    5 * time.Millisecond,
			Max:        20 * time.Millisecond,
			Multiplier: 2,
			Jitter:     -1,
		},
	}
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", m.State(), want)
}

func TestManagerConnect(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, fastConfig())
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want DISCONNECTED", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true before Connect")
		}
	})

	t.Run("Success", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig())
		defer m.Close()

		var transitions []State
		m.OnStateChange(func(_, newState State) { transitions = append(transitions, newState) })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("second Connect() error = %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("connectFn calls = %d, want 1", calls.Load())
		}
		if len(transitions) != 2 || transitions[1] != StateConnected {
			t.Errorf("transitions = %v", transitions)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		cause := errors.New("refused")
		m := NewManager(func(ctx context.Context) error { return cause }, fastConfig())
		defer m.Close()

		err := m.Connect(context.Background())
		if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, cause) {
			t.Errorf("Connect() error = %v, want ErrConnectionFailed wrapping cause", err)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want DISCONNECTED", m.State())
		}
		if !errors.Is(m.LastError(), cause) {
			t.Errorf("LastError() = %v", m.LastError())
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		cfg := fastConfig()
		cfg.ConnectTimeout = 30 * time.Millisecond
		m := NewManager(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, cfg)
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionTimeout) {
			t.Errorf("Connect() error = %v, want ErrConnectionTimeout", err)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want DISCONNECTED", m.State())
		}
	})

	t.Run("Closed", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, fastConfig())
		m.Close()
		m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Connect() error = %v, want ErrConnectionClosed", err)
		}
	})
}

func TestManagerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, fastConfig())
	defer m.Close()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Connect(context.Background())
		}(i)
	}

	waitForState(t, m, StateConnecting)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Connect[%d] error = %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("connectFn calls = %d, want 1", calls.Load())
	}
}

func TestManagerWaiterSeesFailure(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(func(ctx context.Context) error {
		<-release
		return errors.New("handshake rejected")
	}, fastConfig())
	defer m.Close()

	first := make(chan error, 1)
	go func() { first <- m.Connect(context.Background()) }()
	waitForState(t, m, StateConnecting)

	second := make(chan error, 1)
	go func() { second <- m.Connect(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-first; !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("first Connect() error = %v, want ErrConnectionFailed", err)
	}
	if err := <-second; !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("waiting Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestManagerWaiterTimeout(t *testing.T) {
	release := make(chan struct{})
	cfg := fastConfig()
	cfg.ConnectTimeout = 40 * time.Millisecond
	m := NewManager(func(ctx context.Context) error {
		<-release
		return nil
	}, cfg)
	defer m.Close()

	go m.Connect(context.Background())
	waitForState(t, m, StateConnecting)

	if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionTimeout) {
		t.Errorf("Connect() error = %v, want ErrConnectionTimeout", err)
	}
	close(release)
}

func TestManagerReconnect(t *testing.T) {
	t.Run("RetriesUntilConnected", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			n := calls.Add(1)
			if n >= 2 && n <= 3 {
				return errors.New("still down")
			}
			return nil
		}, fastConfig())
		defer m.Close()

		var attempts atomic.Int32
		m.OnReconnecting(func(attempt int, delay time.Duration) { attempts.Add(1) })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		if m.State() != StateReconnecting {
			t.Errorf("State() = %v, want RECONNECTING", m.State())
		}

		waitForState(t, m, StateConnected)
		if calls.Load() != 4 {
			t.Errorf("connectFn calls = %d, want 4", calls.Load())
		}
		if attempts.Load() != 3 {
			t.Errorf("reconnect attempts = %d, want 3", attempts.Load())
		}
		if m.BackoffAttempts() != 0 {
			t.Errorf("BackoffAttempts() = %d after success, want 0", m.BackoffAttempts())
		}
	})

	t.Run("HookRunsBeforeConnected", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, fastConfig())
		defer m.Close()

		hookEntered := make(chan struct{})
		releaseHook := make(chan struct{})
		var stateInHook State
		m.OnReconnected(func(ctx context.Context) {
			stateInHook = m.State()
			close(hookEntered)
			<-releaseHook
		})

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		<-hookEntered

		connected := make(chan error, 1)
		go func() { connected <- m.Connect(context.Background()) }()

		select {
		case err := <-connected:
			t.Fatalf("Connect() returned %v before the hook finished", err)
		case <-time.After(20 * time.Millisecond):
		}

		close(releaseHook)
		if err := <-connected; err != nil {
			t.Errorf("Connect() error = %v", err)
		}
		if stateInHook != StateReconnecting {
			t.Errorf("state during hook = %v, want RECONNECTING", stateInHook)
		}
	})

	t.Run("LossDuringAttemptRetries", func(t *testing.T) {
		var m *Manager
		var calls atomic.Int32
		m = NewManager(func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				m.NotifyConnectionLost()
			}
			return nil
		}, fastConfig())
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		waitForState(t, m, StateConnected)

		if calls.Load() != 3 {
			t.Errorf("connectFn calls = %d, want 3", calls.Load())
		}
	})

	t.Run("CloseStopsLoop", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("down")
			}
			return nil
		}, fastConfig())

		m.Connect(context.Background())
		m.NotifyConnectionLost()
		time.Sleep(30 * time.Millisecond)
		m.Close()

		after := calls.Load()
		time.Sleep(40 * time.Millisecond)
		if calls.Load() != after {
			t.Errorf("connectFn called after Close: %d -> %d", after, calls.Load())
		}
		if m.State() != StateClosed {
			t.Errorf("State() = %v, want CLOSED", m.State())
		}
	})
}

func TestManagerDisconnect(t *testing.T) {
	t.Run("FromConnected", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig())
		defer m.Close()

		var disconnected atomic.Bool
		m.OnDisconnected(func() { disconnected.Store(true) })

		m.Connect(context.Background())
		m.Disconnect()

		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want DISCONNECTED", m.State())
		}
		if !disconnected.Load() {
			t.Error("OnDisconnected not called")
		}

		time.Sleep(30 * time.Millisecond)
		if calls.Load() != 1 {
			t.Errorf("connectFn calls = %d, want 1 (no automatic retry)", calls.Load())
		}
	})

	t.Run("NextConnectReplays", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, fastConfig())
		defer m.Close()

		var replays atomic.Int32
		m.OnReconnected(func(ctx context.Context) { replays.Add(1) })

		m.Connect(context.Background())
		if replays.Load() != 0 {
			t.Errorf("replays after first connect = %d, want 0", replays.Load())
		}
		m.Disconnect()
		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if replays.Load() != 1 {
			t.Errorf("replays after reconnect = %d, want 1", replays.Load())
		}
	})

	t.Run("DuringReconnectGivesUp", func(t *testing.T) {
		var m *Manager
		var calls atomic.Int32
		m = NewManager(func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				m.Disconnect()
			}
			return nil
		}, fastConfig())
		defer m.Close()

		m.Connect(context.Background())
		m.NotifyConnectionLost()
		waitForState(t, m, StateDisconnected)

		time.Sleep(30 * time.Millisecond)
		if calls.Load() != 2 {
			t.Errorf("connectFn calls = %d, want 2", calls.Load())
		}
	})

	t.Run("LossDuringConnect", func(t *testing.T) {
		var m *Manager
		m = NewManager(func(ctx context.Context) error {
			m.NotifyConnectionLost()
			return nil
		}, fastConfig())
		defer m.Close()

		err := m.Connect(context.Background())
		if !errors.Is(err, ErrConnectionLost) {
			t.Errorf("Connect() error = %v, want ErrConnectionLost", err)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want DISCONNECTED", m.State())
		}
	})
}
