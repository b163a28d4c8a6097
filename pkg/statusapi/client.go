package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 4096

// ErrMissingBaseURL indicates a client without a server address.
var ErrMissingBaseURL = errors.New("missing base URL")

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Status, e.URL)
}

// IsNotFound reports whether err is an HTTPError with status 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// Config configures a Client.
type Config struct {
	// BaseURL is the server address, e.g. "https://queue.example.com".
	BaseURL string

	// HTTPClient performs requests (default: client with DefaultTimeout).
	HTTPClient *http.Client

	// Header is added to every request.
	Header http.Header

	// Logger for operational output (optional).
	Logger *slog.Logger
}

// Client reads queue status from the server.
type Client struct {
	config Config
	base   *url.URL
	http   *http.Client
}

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{config: config, base: base, http: hc}, nil
}

// ListSites returns the site catalog.
func (c *Client) ListSites(ctx context.Context) ([]SiteCatalog, error) {
	var out []SiteCatalog
	if err := c.get(ctx, c.endpoint(nil, "api", "public", "sites"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoomStatus returns the status of one room. ticketID is optional; when
// set, the response includes the caller's ticket.
func (c *Client) GetRoomStatus(ctx context.Context, siteSlug, roomSlug, ticketID string) (*RoomStatusResponse, error) {
	var q url.Values
	if ticketID != "" {
		q = url.Values{"ticketId": {ticketID}}
	}
	var out RoomStatusResponse
	u := c.endpoint(q, "api", "public", "sites", siteSlug, "rooms", roomSlug, "status")
	if err := c.get(ctx, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSiteStatus returns the status of every room of a site.
func (c *Client) GetSiteStatus(ctx context.Context, siteSlug string) (*SiteStatus, error) {
	var out SiteStatus
	if err := c.get(ctx, c.endpoint(nil, "api", "tv", "sites", siteSlug, "status"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.config.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if c.config.Logger != nil {
		c.config.Logger.Debug("statusapi: response",
			"url", u, "status", resp.StatusCode, "elapsed", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, URL: u, Body: string(body)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}
