package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asrtt/internal/services"
)

// HTTPDoer describes the HTTP client used by the Toggl client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Workspace is a Toggl workspace.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is a Toggl project inside a workspace.
type Project struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
}

// TimeEntry is a Toggl time entry. A running entry has a negative Duration.
type TimeEntry struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	Stop        *time.Time `json:"stop,omitempty"`
	Duration    int64      `json:"duration"`
}

// Running reports whether the entry is still open.
func (e TimeEntry) Running() bool {
	return e.Stop == nil && e.Duration < 0
}

type startRequest struct {
	CreatedWith string `json:"created_with"`
	Description string `json:"description"`
	ProjectID   int64  `json:"project_id,omitempty"`
	WorkspaceID int64  `json:"workspace_id"`
	Start       string `json:"start"`
	Duration    int64  `json:"duration"`
}

// Client provides access to the Toggl Track API for a single API token.
type Client struct {
	token       string
	baseURL     string
	createdWith string
	httpClient  HTTPDoer
	now         func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCreatedWith sets the created_with tag on new time entries.
func WithCreatedWith(value string) Option {
	return func(c *Client) {
		if value = strings.TrimSpace(value); value != "" {
			c.createdWith = value
		}
	}
}

// WithClock overrides the clock used for entry start timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Toggl client.
func New(token, baseURL string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("toggl api token required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("toggl base url required")
	}
	client := &Client{
		token:       token,
		baseURL:     baseURL,
		createdWith: "asrtt",
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Workspaces lists the workspaces visible to the token.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.do(ctx, http.MethodGet, "/me/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Projects lists the projects of a workspace.
func (c *Client) Projects(ctx context.Context, workspaceID int64) ([]Project, error) {
	var out []Project
	path := "/workspaces/" + strconv.FormatInt(workspaceID, 10) + "/projects"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentEntry returns the running time entry, or nil when none is running.
func (c *Client) CurrentEntry(ctx context.Context) (*TimeEntry, error) {
	var out *TimeEntry
	if err := c.do(ctx, http.MethodGet, "/me/time_entries/current", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartEntry opens a running time entry.
func (c *Client) StartEntry(ctx context.Context, workspaceID, projectID int64, description string) (*TimeEntry, error) {
	body := startRequest{
		CreatedWith: c.createdWith,
		Description: description,
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		Start:       c.now().UTC().Format(time.RFC3339),
		Duration:    -1,
	}
	var out TimeEntry
	path := "/workspaces/" + strconv.FormatInt(workspaceID, 10) + "/time_entries"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopEntry closes a running time entry and returns it with its final duration.
func (c *Client) StopEntry(ctx context.Context, workspaceID, entryID int64) (*TimeEntry, error) {
	var out TimeEntry
	path := fmt.Sprintf("/workspaces/%d/time_entries/%d/stop", workspaceID, entryID)
	if err := c.do(ctx, http.MethodPatch, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	operation := method + " " + path
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode toggl request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build toggl request: %w", err)
	}
	req.SetBasicAuth(c.token, "api_token")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "toggl", operation, fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		return services.Wrap(services.MarkerForStatus(resp.StatusCode), "toggl", operation, message, nil)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrRemote, "toggl", operation, "decode response", err)
	}
	return nil
}
