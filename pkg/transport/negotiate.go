package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// NegotiateVersion is the negotiate protocol version requested.
const NegotiateVersion = 1

// TransportWebSockets is the transport name advertised by the server.
const TransportWebSockets = "WebSockets"

// ErrNegotiateFailed indicates the server refused or botched negotiation.
var ErrNegotiateFailed = errors.New("negotiate failed")

// maxNegotiateBody bounds the negotiate response read.
const maxNegotiateBody = 64 << 10

// AvailableTransport is one transport offered by the server.
type AvailableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

// NegotiateResponse is the body returned by the negotiate endpoint.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId"`
	ConnectionToken     string               `json:"connectionToken"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
	AvailableTransports []AvailableTransport `json:"availableTransports"`

	// URL and AccessToken redirect the client to another endpoint.
	URL         string `json:"url,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`

	Error string `json:"error,omitempty"`
}

// SupportsWebSockets reports whether the server offers a text websocket.
// An empty transport list is treated as permissive.
func (r *NegotiateResponse) SupportsWebSockets() bool {
	if len(r.AvailableTransports) == 0 {
		return true
	}
	for _, t := range r.AvailableTransports {
		if t.Transport != TransportWebSockets {
			continue
		}
		for _, f := range t.TransferFormats {
			if f == "Text" {
				return true
			}
		}
	}
	return false
}

// Token returns the identifier to send as the id query parameter.
func (r *NegotiateResponse) Token() string {
	if r.ConnectionToken != "" {
		return r.ConnectionToken
	}
	return r.ConnectionID
}

// Negotiate posts to {endpoint}/negotiate and returns the parsed response.
func Negotiate(ctx context.Context, client *http.Client, endpoint string, header http.Header) (*NegotiateResponse, error) {
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNegotiateFailed, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/negotiate"
	q := u.Query()
	q.Set("negotiateVersion", fmt.Sprint(NegotiateVersion))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNegotiateFailed, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNegotiateFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNegotiateBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNegotiateFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNegotiateFailed, resp.StatusCode)
	}

	var nr NegotiateResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrNegotiateFailed, err)
	}
	if nr.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNegotiateFailed, nr.Error)
	}
	if nr.URL == "" && nr.Token() == "" {
		return nil, fmt.Errorf("%w: no connection token", ErrNegotiateFailed)
	}
	if !nr.SupportsWebSockets() {
		return nil, fmt.Errorf("%w: websockets not offered", ErrNegotiateFailed)
	}
	return &nr, nil
}

// WebSocketURL converts an http(s) endpoint to ws(s) and sets the id
// query parameter when token is non-empty.
func WebSocketURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("id", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
