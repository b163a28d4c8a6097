package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/queuesync/queuesync-go/pkg/connection"
	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/topic"
	"github.com/queuesync/queuesync-go/pkg/transport"
	"github.com/queuesync/queuesync-go/pkg/wire"
)

// Channel errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrInvocationFailed = errors.New("invocation failed")
)

// Config configures a Channel.
type Config struct {
	// ConnectTimeout bounds the dial and handshake (default: 10s).
	ConnectTimeout time.Duration

	// Backoff configures automatic reconnection delays.
	Backoff connection.BackoffConfig

	// KeepAlive configures client pings and the server timeout.
	KeepAlive transport.KeepAliveConfig

	// Dial configures negotiation and the websocket dial.
	Dial transport.DialConfig

	// Logger for operational output (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: connection.DefaultConnectTimeout,
		Backoff:        connection.DefaultBackoffConfig(),
		KeepAlive:      transport.DefaultKeepAliveConfig(),
	}
}

type pendingCall struct {
	target string
	sent   time.Time
	done   chan struct{}
	msg    *wire.Message
	err    error
}

// session is one live websocket after a successful handshake.
type session struct {
	conn      *transport.Conn
	keepAlive *transport.KeepAlive
}

// Channel is the hub notification channel.
type Channel struct {
	config   Config
	endpoint string
	dialer   *transport.Dialer
	mgr      *connection.Manager
	plog     log.Logger

	mu      sync.Mutex
	sess    *session
	closed  bool
	pending map[string]*pendingCall
	nextID  uint64

	onNotification func(topic.Notification)
	onReconnected  func(ctx context.Context)
	onStateChange  func(oldState, newState connection.State)

	readers sync.WaitGroup
}

// New creates a Channel for the hub at endpoint. No connection is made
// until Connect.
func New(endpoint string, config Config) *Channel {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = connection.DefaultConnectTimeout
	}
	plog := log.OrNoop(config.ProtocolLogger)
	config.Dial.ProtocolLogger = plog

	c := &Channel{
		config:   config,
		endpoint: endpoint,
		dialer:   transport.NewDialer(config.Dial),
		plog:     plog,
		pending:  make(map[string]*pendingCall),
	}

	c.mgr = connection.NewManager(c.connect, connection.Config{
		ConnectTimeout: config.ConnectTimeout,
		Backoff:        config.Backoff,
		Logger:         config.Logger,
	})
	c.mgr.OnStateChange(c.handleStateChange)
	c.mgr.OnReconnected(func(ctx context.Context) {
		c.mu.Lock()
		fn := c.onReconnected
		c.mu.Unlock()
		if fn != nil {
			fn(ctx)
		}
	})

	return c
}

// Endpoint returns the hub endpoint URL.
func (c *Channel) Endpoint() string {
	return c.endpoint
}

// Connect ensures the channel is connected. See connection.Manager.Connect.
func (c *Channel) Connect(ctx context.Context) error {
	return c.mgr.Connect(ctx)
}

// State returns the connection state.
func (c *Channel) State() connection.State {
	return c.mgr.State()
}

// OnNotification sets the callback for inbound notifications. It is called
// on the read loop goroutine, in arrival order, and must not block.
func (c *Channel) OnNotification(fn func(topic.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotification = fn
}

// OnReconnected sets the hook run after a reconnect and before the state
// becomes Connected.
func (c *Channel) OnReconnected(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnected = fn
}

// OnStateChange sets a callback for connection state changes.
func (c *Channel) OnStateChange(fn func(oldState, newState connection.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Invoke calls target on the server and waits for its completion.
// It uses whatever connection is live and does not wait for Connect.
func (c *Channel) Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	call := &pendingCall{target: target, sent: time.Now(), done: make(chan struct{})}
	c.pending[id] = call
	c.mu.Unlock()

	msg, err := wire.NewInvocation(id, target, args...)
	if err == nil {
		var data []byte
		if data, err = wire.EncodeMessage(msg); err == nil {
			if err = s.conn.Send(data); err != nil {
				err = fmt.Errorf("%w: %v", connection.ErrConnectionLost, err)
			}
		}
	}
	if err != nil {
		c.removePending(id)
		return nil, err
	}
	c.logMessage(s, log.DirectionOut, msg, nil)

	select {
	case <-call.done:
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	}

	if call.err != nil {
		return nil, call.err
	}
	if call.msg.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvocationFailed, target, call.msg.Error)
	}
	return call.msg.Result, nil
}

// Close shuts the channel down. Pending invocations fail with
// connection.ErrConnectionClosed. Close is idempotent.
func (c *Channel) Close() error {
	c.mgr.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	s := c.sess
	c.sess = nil
	pending := c.takePendingLocked()
	c.mu.Unlock()

	failPending(pending, connection.ErrConnectionClosed)

	var err error
	if s != nil {
		err = s.conn.Close()
	}
	c.readers.Wait()
	return err
}

// connect dials, performs the handshake and installs the session.
func (c *Channel) connect(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		return err
	}

	if err := c.handshake(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	s := &session{conn: conn}
	s.keepAlive = transport.NewKeepAlive(c.config.KeepAlive,
		func() error { return c.sendPing(s) },
		func() {
			c.warnLog("server timeout, closing connection", "conn_id", conn.ID())
			conn.Close()
		})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return connection.ErrConnectionClosed
	}
	c.sess = s
	c.readers.Add(1)
	c.mu.Unlock()

	s.keepAlive.Start(context.Background())
	go c.readLoop(s)

	c.debugLog("hub connected", "endpoint", c.endpoint, "conn_id", conn.ID())
	return nil
}

func (c *Channel) handshake(ctx context.Context, conn *transport.Conn) error {
	req, err := wire.EncodeHandshake()
	if err != nil {
		return err
	}
	if err := conn.Send(req); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	c.logControl(conn, log.DirectionOut, &log.ControlMsgEvent{Type: log.ControlMsgHandshake})

	type result struct {
		rec []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rec, err := conn.Receive()
		ch <- result{rec, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("read handshake response: %w", r.err)
		}
		err := wire.DecodeHandshakeResponse(r.rec)
		ev := &log.ControlMsgEvent{Type: log.ControlMsgHandshake}
		if err != nil {
			ev.Reason = err.Error()
		}
		c.logControl(conn, log.DirectionIn, ev)
		return err
	case <-ctx.Done():
		// Closing unblocks the reader goroutine.
		conn.Close()
		return ctx.Err()
	}
}

func (c *Channel) readLoop(s *session) {
	defer c.readers.Done()
	defer s.keepAlive.Stop()

	for {
		rec, err := s.conn.Receive()
		if err != nil {
			c.drop(s, err, true)
			return
		}
		s.keepAlive.Received()

		msg, err := wire.DecodeMessage(rec)
		if err != nil {
			c.debugLog("dropping record", "error", err)
			c.logError(s, log.LayerWire, err, "decode")
			continue
		}

		switch msg.Type {
		case wire.TypeInvocation:
			c.handleInvocation(s, msg)
		case wire.TypeCompletion:
			c.resolve(s, msg)
		case wire.TypePing:
			c.logControl(s.conn, log.DirectionIn, &log.ControlMsgEvent{Type: log.ControlMsgPing})
		case wire.TypeClose:
			c.logControl(s.conn, log.DirectionIn, &log.ControlMsgEvent{
				Type:           log.ControlMsgClose,
				Reason:         msg.Error,
				AllowReconnect: msg.AllowReconnect,
			})
			reason := msg.Error
			if reason == "" {
				reason = "server closed connection"
			}
			c.drop(s, errors.New(reason), msg.AllowReconnect)
			return
		default:
			c.debugLog("ignoring message", "type", msg.Type)
		}
	}
}

func (c *Channel) handleInvocation(s *session, msg *wire.Message) {
	if msg.Target != wire.TargetQueueUpdated {
		c.debugLog("ignoring invocation", "target", msg.Target)
		c.logMessage(s, log.DirectionIn, msg, nil)
		if msg.InvocationID != "" {
			c.send(s, wire.NewCompletion(msg.InvocationID, "client does not handle "+msg.Target))
		}
		return
	}

	n, err := wire.DecodeQueueUpdated(msg)
	if err != nil {
		c.debugLog("dropping notification", "error", err)
		c.logError(s, log.LayerWire, err, wire.TargetQueueUpdated)
		return
	}
	c.logMessage(s, log.DirectionIn, msg, &n)
	if msg.InvocationID != "" {
		c.send(s, wire.NewCompletion(msg.InvocationID, ""))
	}

	c.mu.Lock()
	fn := c.onNotification
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

func (c *Channel) resolve(s *session, msg *wire.Message) {
	c.mu.Lock()
	call, ok := c.pending[msg.InvocationID]
	delete(c.pending, msg.InvocationID)
	c.mu.Unlock()

	if !ok {
		c.debugLog("completion for unknown invocation", "invocation_id", msg.InvocationID)
		return
	}

	latency := time.Since(call.sent)
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.conn.ID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:         uint8(msg.Type),
			InvocationID: msg.InvocationID,
			Target:       call.target,
			Error:        msg.Error,
			Latency:      &latency,
		},
	})

	call.msg = msg
	close(call.done)
}

// drop tears down s if it is still the live session and reports the loss.
func (c *Channel) drop(s *session, cause error, retry bool) {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		s.conn.Close()
		return
	}
	c.sess = nil
	pending := c.takePendingLocked()
	c.mu.Unlock()

	s.conn.Close()
	failPending(pending, fmt.Errorf("%w: %v", connection.ErrConnectionLost, cause))
	c.logError(s, log.LayerTransport, cause, "connection lost")

	if retry {
		c.debugLog("hub connection lost", "error", cause)
		c.mgr.NotifyConnectionLost()
		return
	}
	c.warnLog("hub closed connection", "reason", cause)
	c.mgr.Disconnect()
}

func (c *Channel) takePendingLocked() map[string]*pendingCall {
	pending := c.pending
	c.pending = make(map[string]*pendingCall)
	return pending
}

func failPending(pending map[string]*pendingCall, err error) {
	for _, call := range pending {
		call.err = err
		close(call.done)
	}
}

func (c *Channel) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) sendPing(s *session) error {
	data, err := wire.EncodeMessage(wire.NewPing())
	if err != nil {
		return err
	}
	if err := s.conn.Send(data); err != nil {
		return err
	}
	c.logControl(s.conn, log.DirectionOut, &log.ControlMsgEvent{Type: log.ControlMsgPing})
	return nil
}

func (c *Channel) send(s *session, msg *wire.Message) {
	data, err := wire.EncodeMessage(msg)
	if err != nil {
		return
	}
	if err := s.conn.Send(data); err != nil {
		c.debugLog("send failed", "type", msg.Type, "error", err)
		return
	}
	c.logMessage(s, log.DirectionOut, msg, nil)
}

func (c *Channel) handleStateChange(oldState, newState connection.State) {
	c.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerHub,
		Category:  log.CategoryState,
		Endpoint:  c.endpoint,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityChannel,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})

	c.mu.Lock()
	fn := c.onStateChange
	c.mu.Unlock()
	if fn != nil {
		fn(oldState, newState)
	}
}

func (c *Channel) logMessage(s *session, dir log.Direction, msg *wire.Message, n *topic.Notification) {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.conn.ID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:         uint8(msg.Type),
			InvocationID: msg.InvocationID,
			Target:       msg.Target,
			Error:        msg.Error,
		},
	}
	for _, a := range msg.Arguments {
		ev.Message.Arguments = append(ev.Message.Arguments, string(a))
	}
	if n != nil {
		ev.Topic = n.Topic().Key()
	}
	c.plog.Log(ev)
}

func (c *Channel) logControl(conn *transport.Conn, dir log.Direction, ctrl *log.ControlMsgEvent) {
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		ControlMsg:   ctrl,
	})
}

func (c *Channel) logError(s *session, layer log.Layer, err error, op string) {
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.conn.ID(),
		Direction:    log.DirectionIn,
		Layer:        layer,
		Category:     log.CategoryError,
		Error:        &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: op},
	})
}

func (c *Channel) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

func (c *Channel) warnLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Warn(msg, args...)
	}
}
