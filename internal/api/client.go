package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/matheus3301/followtrack/internal/ledger"
	"github.com/matheus3301/followtrack/internal/store"
	intsync "github.com/matheus3301/followtrack/internal/sync"
)

// baseURL is a placeholder host; every request is dialed over the socket.
const baseURL = "http://followd"

// Client talks to a daemon over its Unix domain socket.
type Client struct {
	http *http.Client
	base string
}

// StatusError is a non-2xx daemon response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// NewClient returns a client dialing socketPath.
func NewClient(socketPath string) *Client {
	var d net.Dialer
	return &Client{
		http: &http.Client{Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return d.DialContext(ctx, "unix", socketPath)
			},
		}},
		base: baseURL,
	}
}

// newHTTPClient wraps an existing http.Client, as returned by httptest.
func newHTTPClient(hc *http.Client, base string) *Client {
	return &Client{http: hc, base: base}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Health returns the daemon's profile and status.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	return out, c.do(ctx, http.MethodGet, "/healthz", nil, &out)
}

// View returns the full session view. newest re-sorts relationship lists by
// follow time.
func (c *Client) View(ctx context.Context, newest bool) (intsync.View, error) {
	var q url.Values
	if newest {
		q = url.Values{"order": {"newest"}}
	}
	var out intsync.View
	return out, c.do(ctx, http.MethodGet, "/v1/view", q, &out)
}

// Sync runs a sync and waits for its result.
func (c *Client) Sync(ctx context.Context) (intsync.Result, error) {
	var out intsync.Result
	return out, c.do(ctx, http.MethodPost, "/v1/sync", nil, &out)
}

// TriggerSync queues a sync without waiting. It reports false when one is
// already queued.
func (c *Client) TriggerSync(ctx context.Context) (bool, error) {
	var out QueuedResponse
	err := c.do(ctx, http.MethodPost, "/v1/sync", url.Values{"wait": {"false"}}, &out)
	return out.Queued, err
}

// Runs lists recent sync runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]store.SyncRun, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []store.SyncRun
	return out, c.do(ctx, http.MethodGet, "/v1/runs", q, &out)
}

// Unfollow removes id from the following list and returns its undo token.
// ok is false when id was not followed.
func (c *Client) Unfollow(ctx context.Context, id string) (ledger.Token, bool, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/following/"+url.PathEscape(id)+"/unfollow", nil, &out)
	return out.Token, out.OK, err
}

// Undo reverses the mutation behind tok.
func (c *Client) Undo(ctx context.Context, tok ledger.Token) (bool, error) {
	var out OKResponse
	err := c.do(ctx, http.MethodPost, "/v1/undo/"+url.PathEscape(string(tok)), nil, &out)
	return out.OK, err
}

// Dismiss drops tok without undoing.
func (c *Client) Dismiss(ctx context.Context, tok ledger.Token) (bool, error) {
	var out OKResponse
	err := c.do(ctx, http.MethodPost, "/v1/undo/"+url.PathEscape(string(tok))+"/dismiss", nil, &out)
	return out.OK, err
}

// MarkRead flags one notification as read.
func (c *Client) MarkRead(ctx context.Context, id uint64) (bool, error) {
	var out OKResponse
	err := c.do(ctx, http.MethodPost, "/v1/notifications/"+strconv.FormatUint(id, 10)+"/read", nil, &out)
	return out.OK, err
}

// MarkAllRead flags every notification as read.
func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var out CountResponse
	err := c.do(ctx, http.MethodPost, "/v1/notifications/read-all", nil, &out)
	return out.Count, err
}

// DeleteNotification removes a notification and returns its undo token.
// ok is false when no notification has that id.
func (c *Client) DeleteNotification(ctx context.Context, id uint64) (ledger.Token, bool, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodDelete, "/v1/notifications/"+strconv.FormatUint(id, 10), nil, &out)
	return out.Token, out.OK, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e ErrorResponse
		if sonic.Unmarshal(body, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
