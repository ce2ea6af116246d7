package gitlab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"asrtt/internal/services"
	"asrtt/internal/timefmt"
)

var issueBranchPattern = regexp.MustCompile(`^(\d+)-`)

// ErrNoIssuePrefix means the branch does not start with "<digits>-".
var ErrNoIssuePrefix = errors.New("branch has no issue prefix")

// ErrInvalidIssueID means the branch has a digit prefix that is not a usable
// iid: zero, or too large for an int.
var ErrInvalidIssueID = errors.New("branch issue prefix is not a valid iid")

// ParseIssueBranch extracts the issue iid from a branch named
// "<iid>-<slug>". GitLab iids start at 1, so a prefix of 0 is rejected with
// ErrInvalidIssueID, as is a prefix that overflows int.
func ParseIssueBranch(branch string) (int, error) {
	match := issueBranchPattern.FindStringSubmatch(strings.TrimSpace(branch))
	if match == nil {
		return 0, ErrNoIssuePrefix
	}
	iid, err := strconv.Atoi(match[1])
	if err != nil || iid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIssueID, match[1])
	}
	return iid, nil
}

// IssueFromBranch is ParseIssueBranch reporting only whether the branch is
// linked to an issue. It is false for "0-x" and for overflowing prefixes.
func IssueFromBranch(branch string) (int, bool) {
	iid, err := ParseIssueBranch(branch)
	return iid, err == nil
}

// HTTPDoer describes the HTTP client used by the GitLab client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single GitLab host.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
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

// New creates a client for host. A host that already carries a scheme is
// used as-is; otherwise scheme is prepended.
func New(scheme, host, token string, opts ...Option) (*Client, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, errors.New("gitlab hostname required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("gitlab token required")
	}
	baseURL := host
	if !strings.Contains(host, "://") {
		if scheme = strings.TrimSpace(scheme); scheme == "" {
			scheme = "https"
		}
		baseURL = scheme + "://" + host
	}
	client := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// AddSpentTime adds elapsed to the spent time of issue iid in project.
// The project may be a numeric id or a "group/name" path.
func (c *Client) AddSpentTime(ctx context.Context, project string, iid int, elapsed time.Duration) error {
	project = strings.TrimSpace(project)
	if project == "" {
		return errors.New("gitlab project required")
	}
	operation := "add_spent_time"
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/issues/%d/add_spent_time?duration=%s",
		c.baseURL,
		url.PathEscape(project),
		iid,
		url.QueryEscape(timefmt.Spent(elapsed, false)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build gitlab request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrTransient, "gitlab", operation, fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		return services.Wrap(services.MarkerForStatus(resp.StatusCode), "gitlab", operation, message, nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
