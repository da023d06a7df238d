package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/timeout"
)

// Config configures the backend client.
type Config struct {
	BaseURL     string        // backend root; the client appends /api
	Timeout     time.Duration // per request (default: timeout.Backend)
	MaxInflight int64         // process-wide cap on concurrent requests (default: 16)
	HTTPClient  *http.Client
}

// Client implements Service over HTTP.
type Client struct {
	apiURL   string
	timeout  time.Duration
	http     *http.Client
	inflight *semaphore.Weighted
}

// NewClient creates a new backend client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeout.Backend
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 16
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		apiURL:   cfg.BaseURL + "/api",
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
		inflight: semaphore.NewWeighted(cfg.MaxInflight),
	}
}

func (c *Client) SendChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Approve(ctx context.Context, req *ApproveRequest) (*ApproveResponse, error) {
	var resp ApproveResponse
	if err := c.do(ctx, http.MethodPost, "/approve", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) History(ctx context.Context, sessionID string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(sessionID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearHistory(ctx context.Context, sessionID string) (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/history/"+url.PathEscape(sessionID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) LinkStatus(ctx context.Context, sessionID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/gmail/status", sessionQuery(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StartLink(ctx context.Context, sessionID string) (*AuthURLResponse, error) {
	var resp AuthURLResponse
	if err := c.do(ctx, http.MethodGet, "/gmail/auth", sessionQuery(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) LinkedProfile(ctx context.Context, sessionID string) (*ProfileResponse, error) {
	var resp ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/gmail/profile", sessionQuery(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func sessionQuery(sessionID string) url.Values {
	return url.Values{"session_id": []string{sessionID}}
}

// do performs one JSON round trip. It never retries.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return errors.ContextCanceled(err)
	}
	defer c.inflight.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidArgument, "failed to encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidArgument, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.BackendUnavailable(fmt.Sprintf("reading %s %s", method, path), err)
	}

	slog.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.BackendRejected(resp.StatusCode, snippet(data)).
			WithContext("path", path)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeBackendRejected, fmt.Sprintf("decoding %s %s", method, path))
	}
	return nil
}

func classifyTransportError(ctx context.Context, method, path string, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Timeout(fmt.Sprintf("%s %s timed out", method, path), err)
	case stderrors.Is(ctx.Err(), context.Canceled):
		return errors.ContextCanceled(err)
	default:
		return errors.BackendUnavailable(fmt.Sprintf("%s %s failed", method, path), err)
	}
}

// snippet returns the body truncated for errors and logs.
func snippet(data []byte) string {
	if len(data) <= timeout.MaxBodySnippet {
		return string(data)
	}
	return string(data[:timeout.MaxBodySnippet-3]) + "..."
}

var _ Service = (*Client)(nil)
