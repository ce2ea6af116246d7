package tracker

import (
	"context"
	"time"
)

// TimeTracking opens and closes remote sessions keyed by a worker token.
// Implementations log their own failures and report them as !ok.
type TimeTracking interface {
	Start(ctx context.Context, token, project, description string) (int64, bool)
	Current(ctx context.Context, token string) (int64, bool)
	Stop(ctx context.Context, token string) (time.Duration, bool)
}

// IssueTracker records elapsed time against the issue derived from branch.
// It is best-effort and never reports failure.
type IssueTracker interface {
	LogTime(ctx context.Context, elapsed time.Duration, host, token, project, branch string)
}

// Journal stores closed sessions for later inspection.
type Journal interface {
	Record(ctx context.Context, session Session) error
}

// Notifier pushes user-facing events.
type Notifier interface {
	NotifyIdleStop(ctx context.Context, branch, project string, elapsed time.Duration) error
	NotifyTrackingDisabled(ctx context.Context, active int) error
	NotifyTrackingEnabled(ctx context.Context, threshold int) error
}

// StopReason explains why a session was closed.
type StopReason string

const (
	ReasonBranchChange StopReason = "branch_change"
	ReasonExplicit     StopReason = "explicit"
	ReasonIdleTimeout  StopReason = "idle_timeout"
	ReasonDisabled     StopReason = "disabled"
	ReasonShutdown     StopReason = "shutdown"
)

// Session describes one closed tracking session.
type Session struct {
	Worker    string
	Branch    string
	Project   string
	Host      string
	Elapsed   time.Duration
	Remote    bool
	Reason    StopReason
	StartedAt time.Time
	StoppedAt time.Time
}
