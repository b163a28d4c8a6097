package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/queuesync/queuesync-go/pkg/channel"
	"github.com/queuesync/queuesync-go/pkg/connection"
	"github.com/queuesync/queuesync-go/pkg/fanout"
	"github.com/queuesync/queuesync-go/pkg/log"
	"github.com/queuesync/queuesync-go/pkg/subscription"
	"github.com/queuesync/queuesync-go/pkg/topic"
	"github.com/queuesync/queuesync-go/pkg/transport"
	"github.com/queuesync/queuesync-go/pkg/wire"
)

// DefaultHubPath is appended to the base URL to form the hub endpoint.
const DefaultHubPath = "/hubs/queue"

// Hub client errors.
var (
	ErrJoinFailed     = errors.New("join failed")
	ErrMissingBaseURL = errors.New("missing base URL")
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server address, e.g. "https://queue.example.com".
	BaseURL string

	// HubPath is the hub route below BaseURL (default: /hubs/queue).
	HubPath string

	// ConnectTimeout bounds connection establishment and each replayed
	// join (default: 10s).
	ConnectTimeout time.Duration

	// Backoff configures automatic reconnection delays.
	Backoff connection.BackoffConfig

	// KeepAlive configures client pings and the server timeout.
	KeepAlive transport.KeepAliveConfig

	// SkipNegotiation dials the websocket without a negotiate request.
	SkipNegotiation bool

	// Header is sent with negotiate and websocket requests.
	Header http.Header

	// HTTPClient is used for negotiation (optional).
	HTTPClient *http.Client

	// Logger for operational output (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol trace events (optional).
	ProtocolLogger log.Logger
}

// Endpoint returns the hub endpoint URL.
func (c Config) Endpoint() string {
	path := c.HubPath
	if path == "" {
		path = DefaultHubPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(c.BaseURL, "/") + path
}

func (c Config) channelConfig() channel.Config {
	cfg := channel.DefaultConfig()
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	if c.Backoff != (connection.BackoffConfig{}) {
		cfg.Backoff = c.Backoff
	}
	if c.KeepAlive != (transport.KeepAliveConfig{}) {
		cfg.KeepAlive = c.KeepAlive
	}
	cfg.Dial = transport.DialConfig{
		Header:          c.Header,
		SkipNegotiation: c.SkipNegotiation,
		HTTPClient:      c.HTTPClient,
	}
	cfg.Logger = c.Logger
	cfg.ProtocolLogger = c.ProtocolLogger
	return cfg
}

// Channel is the notification channel a Client drives.
type Channel interface {
	Connect(ctx context.Context) error
	Invoke(ctx context.Context, target string, args ...any) (json.RawMessage, error)
	OnNotification(fn func(topic.Notification))
	OnReconnected(fn func(ctx context.Context))
	State() connection.State
	Close() error
}

var _ Channel = (*channel.Channel)(nil)

// Client is the queue hub client.
type Client struct {
	config    Config
	ch        Channel
	registry  *subscription.Registry
	listeners *fanout.Fanout
	plog      log.Logger
}

// New creates a Client for the hub at config.Endpoint(). No connection is
// made until Connect or the first join.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	return NewWithChannel(channel.New(config.Endpoint(), config.channelConfig()), config), nil
}

// NewWithChannel creates a Client on top of an existing channel. Only the
// timeout and logging fields of config are used.
func NewWithChannel(ch Channel, config Config) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = connection.DefaultConnectTimeout
	}
	c := &Client{
		config:    config,
		ch:        ch,
		registry:  subscription.NewRegistry(),
		listeners: fanout.New(config.Logger),
		plog:      log.OrNoop(config.ProtocolLogger),
	}
	ch.OnNotification(func(n topic.Notification) {
		c.listeners.Deliver(n)
	})
	ch.OnReconnected(c.replay)
	return c
}

// Connect establishes the hub connection. It is a no-op when connected.
func (c *Client) Connect(ctx context.Context) error {
	return c.ch.Connect(ctx)
}

// JoinRoom joins the topic of a single room.
func (c *Client) JoinRoom(ctx context.Context, siteKey, roomKey string) error {
	return c.Join(ctx, topic.Room(siteKey, roomKey))
}

// JoinSite joins the topic of a whole site.
func (c *Client) JoinSite(ctx context.Context, siteKey string) error {
	return c.Join(ctx, topic.Site(siteKey))
}

// Join connects if necessary, records t for replay and asks the server to
// join it. Joining the same topic again sends another request.
func (c *Client) Join(ctx context.Context, t topic.Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := c.ch.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrJoinFailed, t, err)
	}
	if c.registry.Record(t) {
		c.debugLog("hub: topic recorded", "topic", t.String())
	}
	if err := c.invokeJoin(ctx, t); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrJoinFailed, t, err)
	}
	return nil
}

// OnUpdate registers fn for every notification and returns a function that
// removes it. The returned function is idempotent.
func (c *Client) OnUpdate(fn func(topic.Notification)) func() {
	h := c.listeners.Add(fn)
	return h.Remove
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.ch.State()
}

// Topics returns the recorded topics, sorted by key.
func (c *Client) Topics() []topic.Topic {
	return c.registry.Snapshot()
}

// Close shuts down the connection. Recorded topics and listeners are kept
// but no further notifications are delivered.
func (c *Client) Close() error {
	return c.ch.Close()
}

func (c *Client) invokeJoin(ctx context.Context, t topic.Topic) error {
	method, args := wire.JoinInvocation(t)
	_, err := c.ch.Invoke(ctx, method, args...)
	return err
}

// replay rejoins every recorded topic. It runs before the reconnected
// channel is reported as connected.
func (c *Client) replay(ctx context.Context) {
	if c.registry.Len() == 0 {
		return
	}
	c.logReplay("STARTED", "")

	res := c.registry.Replay(ctx, func(ctx context.Context, t topic.Topic) error {
		jctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
		return c.invokeJoin(jctx, t)
	})

	for key, err := range res.Failed {
		c.warnLog("hub: rejoin failed", "topic", key, "error", err)
	}
	if err := res.Err(); err != nil {
		c.logReplay("PARTIAL", err.Error())
		return
	}
	c.debugLog("hub: topics rejoined", "count", res.Succeeded())
	c.logReplay("DONE", "")
}

func (c *Client) logReplay(state, reason string) {
	c.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerHub,
		Category:  log.CategoryState,
		Endpoint:  c.config.Endpoint(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityReplay,
			NewState: state,
			Reason:   reason,
		},
	})
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

func (c *Client) warnLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Warn(msg, args...)
	}
}
