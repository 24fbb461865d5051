// Package httpgw implements the gateway contract against the REST API served
// by internal/server.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/server"
	"github.com/rcliao/insight-sync/internal/store"
)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a remote session server.
type Client struct {
	baseURL string
	client  *http.Client
}

var (
	_ gateway.Gateway = (*Client)(nil)
	_ store.Store     = (*Client)(nil)
)

// New returns a client for the server at baseURL.
func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// ValidateSession asks the session listing for id alone.
func (c *Client) ValidateSession(ctx context.Context, id string) (bool, error) {
	sessions, err := c.listSessions(ctx, "validate", store.ListSessionsParams{ID: id})
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "create", http.MethodPost, "/sessions", nil, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &gateway.CreateSessionError{Err: fmt.Errorf("server returned no session id")}
	}
	return out.ID, nil
}

func (c *Client) ListSessions(ctx context.Context, p store.ListSessionsParams) ([]model.SessionInfo, error) {
	return c.listSessions(ctx, "list", p)
}

func (c *Client) listSessions(ctx context.Context, op string, p store.ListSessionsParams) ([]model.SessionInfo, error) {
	q := url.Values{}
	if p.ID != "" {
		q.Set("id", p.ID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	path := "/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Sessions []model.SessionInfo `json:"sessions"`
	}
	if err := c.do(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, sessionPath(id, ""), nil, nil)
}

func (c *Client) CommitInsights(ctx context.Context, id string, insights []model.Insight, source model.SourceType) ([]model.Insight, error) {
	req := server.CommitRequest{SourceType: source, Insights: insights}
	var out server.CommitResponse
	if err := c.do(ctx, "commit", http.MethodPost, sessionPath(id, "insights"), req, &out); err != nil {
		return nil, err
	}
	return out.Insights, nil
}

func (c *Client) FetchHistory(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, "history", http.MethodGet, sessionPath(id, "history"), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AddMessage(ctx context.Context, p store.MessageParams) (*model.Message, error) {
	req := server.MessageRequest{Role: p.Role, Content: p.Content}
	var msg model.Message
	if err := c.do(ctx, "message", http.MethodPost, sessionPath(p.SessionID, "messages"), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Close is a no-op; the client holds no resources of its own.
func (c *Client) Close() error {
	return nil
}

func sessionPath(id, sub string) string {
	p := "/sessions/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &gateway.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &gateway.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode >= 300 {
		return decodeError(op, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func decodeError(op string, status int, data []byte) error {
	var e server.ErrorResponse
	_ = json.Unmarshal(data, &e)

	switch {
	case status == http.StatusNotFound && e.Error == server.CodeSessionNotFound:
		return fmt.Errorf("%s: %w", op, gateway.ErrSessionNotFound)
	case status == http.StatusUnprocessableEntity || e.Error == server.CodeValidationFailed:
		return &gateway.ValidationError{Reason: e.Reason, Entries: e.Entries}
	}
	msg := e.Error
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	err := fmt.Errorf("server returned %d: %s", status, msg)
	if status >= http.StatusInternalServerError {
		return &gateway.NetworkError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
