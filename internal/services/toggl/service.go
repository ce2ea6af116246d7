package toggl

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"asrtt/internal/config"
	"asrtt/internal/logging"
	"asrtt/internal/services"
)

// Service starts, reads, and stops sessions on behalf of any worker token.
// Every method logs and swallows remote failures.
type Service struct {
	baseURL     string
	createdWith string
	httpClient  HTTPDoer
	logger      *slog.Logger
}

// NewService builds a Toggl service from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	baseURL := "https://api.track.toggl.com/api/v9"
	createdWith := "asrtt"
	timeout := 15 * time.Second
	if cfg != nil {
		baseURL = cfg.Toggl.BaseURL
		createdWith = cfg.Toggl.CreatedWith
		if t := cfg.TogglTimeout(); t > 0 {
			timeout = t
		}
	}
	return NewHTTPService(baseURL, createdWith, &http.Client{Timeout: timeout}, logger)
}

// NewHTTPService constructs a service over an explicit HTTP client.
func NewHTTPService(baseURL, createdWith string, client HTTPDoer, logger *slog.Logger) *Service {
	return &Service{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		createdWith: createdWith,
		httpClient:  client,
		logger:      logging.NewComponentLogger(logger, "toggl"),
	}
}

// Start opens a time entry tagged with description in the project named
// project. It returns the new entry id, or false when the project cannot be
// found or any call fails.
func (s *Service) Start(ctx context.Context, token, project, description string) (int64, bool) {
	client, ok := s.client(ctx, token)
	if !ok {
		return 0, false
	}

	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		s.handleError(ctx, token, err, "get toggl workspaces failed")
		return 0, false
	}

	var workspaceID, projectID int64
	for _, ws := range workspaces {
		projects, err := client.Projects(ctx, ws.ID)
		if err != nil {
			s.handleError(ctx, token, err, "get toggl workspace projects failed")
			return 0, false
		}
		for _, p := range projects {
			if p.Name == project {
				workspaceID, projectID = ws.ID, p.ID
				break
			}
		}
		if projectID != 0 {
			break
		}
	}

	if projectID == 0 {
		logging.ErrorWithContext(s.log(ctx, token), "toggl project not found in any workspace", "toggl_project_missing",
			logging.String("project", project),
			logging.Int("workspaces", len(workspaces)),
			logging.String(logging.FieldErrorHint, "create a Toggl project named after the GitLab project path"),
		)
		return 0, false
	}

	entry, err := client.StartEntry(ctx, workspaceID, projectID, description)
	if err != nil {
		s.handleError(ctx, token, err, "start toggl time entry failed")
		return 0, false
	}
	return entry.ID, true
}

// Current returns the id of the running entry, or false when none is running
// or the lookup fails.
func (s *Service) Current(ctx context.Context, token string) (int64, bool) {
	entry, ok := s.current(ctx, token)
	if !ok || entry == nil {
		return 0, false
	}
	return entry.ID, true
}

// Stop closes the running entry and returns its duration.
func (s *Service) Stop(ctx context.Context, token string) (time.Duration, bool) {
	entry, ok := s.current(ctx, token)
	if !ok {
		return 0, false
	}
	if entry == nil {
		logging.ErrorWithContext(s.log(ctx, token), "there is no current toggl entry in progress", "toggl_no_current_entry",
			logging.String(logging.FieldErrorHint, "the entry may have been stopped from another Toggl client"),
		)
		return 0, false
	}

	client, ok := s.client(ctx, token)
	if !ok {
		return 0, false
	}
	stopped, err := client.StopEntry(ctx, entry.WorkspaceID, entry.ID)
	if err != nil {
		s.handleError(ctx, token, err, "stop toggl time entry failed")
		return 0, false
	}
	if stopped.Duration < 0 {
		return 0, false
	}
	return time.Duration(stopped.Duration) * time.Second, true
}

func (s *Service) current(ctx context.Context, token string) (*TimeEntry, bool) {
	client, ok := s.client(ctx, token)
	if !ok {
		return nil, false
	}
	entry, err := client.CurrentEntry(ctx)
	if err != nil {
		s.handleError(ctx, token, err, "get current toggl time entry failed")
		return nil, false
	}
	return entry, true
}

func (s *Service) client(ctx context.Context, token string) (*Client, bool) {
	client, err := New(token, s.baseURL, WithHTTPClient(s.httpClient), WithCreatedWith(s.createdWith))
	if err != nil {
		s.handleError(ctx, token, err, "build toggl client failed")
		return nil, false
	}
	return client, true
}

func (s *Service) handleError(ctx context.Context, token string, err error, message string) {
	logger := s.log(ctx, token)
	if errors.Is(err, services.ErrUnauthorized) {
		logging.ErrorWithContext(logger, "invalid toggl token", "toggl_unauthorized",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the togglToken sent by the client"),
		)
		return
	}
	logging.ErrorWithContext(logger, message, "toggl_request_failed", logging.Error(err))
}

func (s *Service) log(ctx context.Context, token string) *slog.Logger {
	logger := logging.WithContext(ctx, s.logger)
	if _, ok := services.WorkerFromContext(ctx); !ok {
		logger = logger.With(logging.String(logging.FieldWorker, services.Redact(token)))
	}
	return logger
}
