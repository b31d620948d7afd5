package docstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// Client is a DocumentStore backed by a remote document server.
type Client struct {
	http    *http.Client
	dialer  *websocket.Dialer
	baseURL *url.URL
	token   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRootCAs trusts pool when the server uses HTTPS, for example the
// self-signed certificate written by 'spendwise serve --tls'.
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(c *Client) {
		cfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
		c.http.Transport = &http.Transport{TLSClientConfig: cfg}
		c.dialer.TLSClientConfig = cfg
	}
}

// NewClient creates a client for the server at baseURL authenticating with
// the bearer token.
func NewClient(baseURL, token string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: remote url %q", common.ErrInvalidConfig, baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		baseURL: u,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Set creates or replaces a document.
func (c *Client) Set(ctx context.Context, collection, id string, doc service.Document) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, c.endpoint(nil, collection, id), body)
	if err != nil {
		return err
	}
	return drain(resp)
}

// Get returns one document or common.ErrNotFound.
func (c *Client) Get(ctx context.Context, collection, id string) (service.Document, error) {
	if err := validateKey(ctx, collection, id); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(nil, collection, id), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.Unavailable("read response", err)
	}
	return decodeDocument(data)
}

// Query returns the caller's documents in a collection. The server scopes
// every query to the token's user, so q.OwnerID must match it.
func (c *Client) Query(ctx context.Context, q service.Query) ([]service.Document, error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(queryParams(q), q.Collection), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var docs []service.Document
	if err := dec.Decode(&docs); err != nil {
		return nil, common.Remote("decode query", err)
	}
	return docs, nil
}

// Listen opens a WebSocket live query. The connection is not re-established
// if it drops; the caller re-subscribes.
func (c *Client) Listen(ctx context.Context, q service.Query, fn func([]service.Document)) (func(), error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}

	u := c.endpoint(queryParams(q), q.Collection, "live")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			return nil, statusError("listen", resp)
		}
		return nil, classifyTransport("listen", err)
	}

	l := &listener{fn: fn}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !l.isStopped() {
					slog.Warn("Live query connection closed", "collection", q.Collection, "error", err)
				}
				return
			}
			var msg struct {
				Type      string             `json:"type"`
				Documents []service.Document `json:"documents"`
			}
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&msg); err != nil {
				slog.Warn("Ignoring malformed live query message", "error", err)
				continue
			}
			if msg.Type == "snapshot" {
				l.deliver(msg.Documents)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			l.stop()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			<-done
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop, nil
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodDelete, c.endpoint(nil, collection, id), nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *Client) endpoint(params url.Values, parts ...string) *url.URL {
	u := *c.baseURL
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	u.Path = u.Path + "/v1/" + strings.Join(escaped, "/")
	u.RawQuery = params.Encode()
	return &u
}

func queryParams(q service.Query) url.Values {
	params := url.Values{}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
		params.Set("desc", strconv.FormatBool(q.Descending))
	}
	return params
}

// do sends the request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method string, u *url.URL, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := strings.ToLower(method) + " " + u.Path
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func drain(resp *http.Response) error {
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// classifyTransport maps a failure to reach the server. Deadlines become
// timeouts; everything else means the server is unavailable.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ClassifyRemote(op, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.ClassifyRemote(op, context.DeadlineExceeded)
	}
	return common.Unavailable(op, err)
}

// statusError maps a non-2xx response: 404 is not found, 5xx and 429 are
// unavailable, anything else is a remote error.
func statusError(op string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", common.ErrNotFound, op, cause)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return common.ClassifyRemote(op, fmt.Errorf("%w: %w", context.DeadlineExceeded, cause))
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return common.Unavailable(op, cause)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s: %w", common.ErrValidation, op, cause)
	default:
		return common.Remote(op, cause)
	}
}
