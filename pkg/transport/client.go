package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/queuesync/queuesync-go/pkg/log"
)

// ErrConnectionClosed indicates use of a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// DefaultHandshakeTimeout bounds the websocket upgrade.
const DefaultHandshakeTimeout = 10 * time.Second

// DialConfig configures a Dialer.
type DialConfig struct {
	// Header is sent with the negotiate request and the websocket upgrade.
	Header http.Header

	// HandshakeTimeout bounds the websocket upgrade (default: 10s).
	HandshakeTimeout time.Duration

	// MaxMessageSize bounds a single record (default: 1 MB).
	MaxMessageSize int

	// SkipNegotiation dials the websocket directly without a token.
	SkipNegotiation bool

	// HTTPClient is used for negotiation (default: http.DefaultClient).
	HTTPClient *http.Client

	// ProtocolLogger receives a FrameEvent for every record.
	ProtocolLogger log.Logger
}

// Dialer opens websocket connections to a hub endpoint.
type Dialer struct {
	config DialConfig
	ws     *websocket.Dialer
}

// NewDialer creates a Dialer, filling zero config values with defaults.
func NewDialer(config DialConfig) *Dialer {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	config.ProtocolLogger = log.OrNoop(config.ProtocolLogger)

	return &Dialer{
		config: config,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// Dial negotiates (unless disabled) and opens the websocket for endpoint,
// an http(s) or ws(s) URL of the hub.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (*Conn, error) {
	target, header := endpoint, d.config.Header

	var token string
	if !d.config.SkipNegotiation {
		nr, err := Negotiate(ctx, d.config.HTTPClient, endpoint, header)
		if err != nil {
			return nil, err
		}
		if nr.URL != "" {
			target = nr.URL
			if nr.AccessToken != "" {
				header = header.Clone()
				if header == nil {
					header = http.Header{}
				}
				header.Set("Authorization", "Bearer "+nr.AccessToken)
			}
			if nr, err = Negotiate(ctx, d.config.HTTPClient, target, header); err != nil {
				return nil, err
			}
		}
		token = nr.Token()
	}

	wsURL, err := WebSocketURL(target, token)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	ws, resp, err := d.ws.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	ws.SetReadLimit(int64(d.config.MaxMessageSize) + 1)

	return &Conn{
		id:       uuid.New().String(),
		endpoint: endpoint,
		ws:       ws,
		framer:   NewFramer(d.config.MaxMessageSize),
		logger:   d.config.ProtocolLogger,
		closeCh:  make(chan struct{}),
	}, nil
}

// Conn is an open hub websocket carrying separator-terminated records.
type Conn struct {
	id       string
	endpoint string
	ws       *websocket.Conn
	logger   log.Logger

	readMu  sync.Mutex
	framer  *Framer
	pending [][]byte

	writeMu sync.Mutex

	closeOnce sync.Once
	closeCh   chan struct{}
}

// ID returns the connection's trace identifier.
func (c *Conn) ID() string {
	return c.id
}

// Endpoint returns the hub endpoint the connection was dialed for.
func (c *Conn) Endpoint() string {
	return c.endpoint
}

// Send writes a single record. The separator is appended.
func (c *Conn) Send(record []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	frame := AppendRecord(make([]byte, 0, len(record)+1), record)
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	c.logFrame(record, log.DirectionOut)
	return nil
}

// Receive blocks until the next record arrives. Close unblocks it.
func (c *Conn) Receive() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.pending) == 0 {
		select {
		case <-c.closeCh:
			return nil, ErrConnectionClosed
		default:
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
				return nil, ErrConnectionClosed
			default:
			}
			return nil, err
		}

		records, err := c.framer.Feed(data)
		c.pending = append(c.pending, records...)
		if err != nil && len(c.pending) == 0 {
			return nil, err
		}
	}

	rec := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	c.logFrame(rec, log.DirectionIn)
	return rec, nil
}

// Close sends a websocket close frame and closes the socket.
// It is safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)

		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))

		err = c.ws.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

func (c *Conn) logFrame(record []byte, dir log.Direction) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Endpoint:     c.endpoint,
		Frame:        log.NewFrameEvent(record),
	})
}
