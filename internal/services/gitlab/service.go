package gitlab

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"asrtt/internal/config"
	"asrtt/internal/logging"
	"asrtt/internal/services"
	"asrtt/internal/timefmt"
)

// Service logs spent time for whichever host and token a worker supplies.
type Service struct {
	scheme     string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// NewService builds a GitLab service from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	scheme := "https"
	timeout := 15 * time.Second
	if cfg != nil {
		if cfg.GitLab.Scheme != "" {
			scheme = cfg.GitLab.Scheme
		}
		if t := cfg.GitLabTimeout(); t > 0 {
			timeout = t
		}
	}
	return NewHTTPService(scheme, &http.Client{Timeout: timeout}, logger)
}

// NewHTTPService constructs a service over an explicit HTTP client.
func NewHTTPService(scheme string, client HTTPDoer, logger *slog.Logger) *Service {
	return &Service{
		scheme:     scheme,
		httpClient: client,
		logger:     logging.NewComponentLogger(logger, "gitlab"),
	}
}

// LogTime records elapsed against the issue named by branch. Branches that
// do not start with an issue number, or whose prefix is not a valid iid, are
// skipped with a warning.
func (s *Service) LogTime(ctx context.Context, elapsed time.Duration, host, token, project, branch string) {
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String("project", project),
		logging.String("branch", branch),
	)

	iid, err := ParseIssueBranch(branch)
	switch {
	case errors.Is(err, ErrInvalidIssueID):
		logging.WarnWithContext(logger, "branch issue prefix is not a valid iid", "gitlab_branch_invalid_iid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "issue iids start at 1 and must fit an integer"),
			logging.String(logging.FieldImpact, "spent time not recorded in gitlab"),
		)
		return
	case err != nil:
		logging.WarnWithContext(logger, "branch is not linked to an issue", "gitlab_branch_unlinked",
			logging.String(logging.FieldErrorHint, "name branches <issue>-<slug> to log spent time"),
			logging.String(logging.FieldImpact, "spent time not recorded in gitlab"),
		)
		return
	}

	client, err := New(s.scheme, host, token, WithHTTPClient(s.httpClient))
	if err != nil {
		logging.ErrorWithContext(logger, "build gitlab client failed", "gitlab_client_invalid", logging.Error(err))
		return
	}

	spent := timefmt.Spent(elapsed, false)
	if err := client.AddSpentTime(ctx, project, iid, elapsed); err != nil {
		hint := "check gitlab host and project"
		if errors.Is(err, services.ErrUnauthorized) {
			hint = "check the gitlabToken sent by the client"
		}
		logging.ErrorWithContext(logger, "add spent time failed", "gitlab_spent_time_failed",
			logging.Error(err),
			logging.Int("issue", iid),
			logging.String("duration", spent),
			logging.String(logging.FieldErrorHint, hint),
		)
		return
	}

	logger.Info("spent time logged",
		logging.String(logging.FieldEventType, "gitlab_spent_time"),
		logging.Int("issue", iid),
		logging.String("duration", timefmt.Spent(elapsed, true)),
	)
}
