// Package apiclient talks to a running asrtt server over HTTP. The CLI uses
// it for threshold management and read-only status queries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"asrtt/internal/api"
)

// ErrForbidden is returned when the server rejects the control secret.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthorized is returned when the server rejects the API token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError describes an unexpected HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, body)
}

// Client is a thin wrapper over the server's HTTP routes.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithToken sets the bearer token for /api routes.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = strings.TrimSpace(token)
	}
}

// New constructs a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldTrack returns the current threshold in seconds. Zero means tracking
// is disabled.
func (c *Client) ShouldTrack(ctx context.Context) (int, error) {
	var resp api.ShouldTrackResponse
	if err := c.do(ctx, http.MethodGet, "/should-track", nil, &resp); err != nil {
		return 0, err
	}
	return resp.MaxIdleTime, nil
}

// SetMaxIdleTime updates the threshold. seconds=0 disables tracking.
func (c *Client) SetMaxIdleTime(ctx context.Context, password string, seconds int) error {
	req := api.MaxIdleTimeRequest{Password: password, Time: api.NewThreshold(seconds)}
	return c.do(ctx, http.MethodPut, "/max-idle-time", req, nil)
}

// Status returns the server status snapshot.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit recently closed sessions, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
