package tracker

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"asrtt/internal/logging"
	"asrtt/internal/services"
)

// DefaultThreshold is the idle threshold in seconds used when none is configured.
const DefaultThreshold = 3 * 60

// MaxThreshold is the largest threshold in seconds that still fits a
// time.Duration.
const MaxThreshold = math.MaxInt64 / int64(time.Second)

// Options configures a Tracker.
type Options struct {
	TimeTracking TimeTracking
	IssueTracker IssueTracker
	Journal      Journal
	Notifier     Notifier
	Logger       *slog.Logger
	// Secret guards SetThreshold. Empty rejects every change.
	Secret string
	// Threshold is the initial idle threshold in seconds.
	Threshold int
	// Unit is the duration of one threshold step. Defaults to a second.
	Unit time.Duration
	Clock func() time.Time
}

// Tracker is the front door to every worker's state machine.
type Tracker struct {
	timeTracking TimeTracking
	issues       IssueTracker
	journal      Journal
	notifier     Notifier
	logger       *slog.Logger
	secret       string
	unit         time.Duration
	now          func() time.Time

	threshold atomic.Int64
	registry  *registry
}

// New constructs a tracker.
func New(opts Options) (*Tracker, error) {
	if opts.TimeTracking == nil {
		return nil, errors.New("time tracking service required")
	}
	if opts.IssueTracker == nil {
		return nil, errors.New("issue tracker required")
	}
	if opts.Threshold < 0 || int64(opts.Threshold) > MaxThreshold {
		return nil, fmt.Errorf("threshold must be between 0 and %d, got %d", MaxThreshold, opts.Threshold)
	}
	t := &Tracker{
		timeTracking: opts.TimeTracking,
		issues:       opts.IssueTracker,
		journal:      opts.Journal,
		notifier:     opts.Notifier,
		logger:       logging.NewComponentLogger(opts.Logger, "tracker"),
		secret:       opts.Secret,
		unit:         opts.Unit,
		now:          opts.Clock,
	}
	if t.unit <= 0 {
		t.unit = time.Second
	}
	if t.now == nil {
		t.now = time.Now
	}
	t.threshold.Store(int64(opts.Threshold))
	t.registry = newRegistry(t.newEntry)
	return t, nil
}

func (t *Tracker) newEntry(id string) *workerEntry {
	label := services.Redact(id)
	ctx := services.WithWorker(context.Background(), label)
	return &workerEntry{
		id:    id,
		label: label,
		queue: newSerialQueue(ctx, t.logger),
	}
}

// Threshold returns the idle threshold in seconds. Zero means disabled.
func (t *Tracker) Threshold() int {
	return int(t.threshold.Load())
}

// Enabled reports whether signals are currently accepted.
func (t *Tracker) Enabled() bool {
	return t.Threshold() > 0
}

// Signal records activity for a worker. The transition runs asynchronously
// on the worker's queue; Signal only validates and enqueues.
func (t *Tracker) Signal(ctx context.Context, a Activity) error {
	a = a.trimmed()
	if err := a.require("worker", "branch"); err != nil {
		return err
	}
	if !t.Enabled() {
		logging.WarnWithContext(t.log(ctx), "declining activity signal", "signal_declined",
			logging.String(logging.FieldErrorHint, "raise max idle time to resume tracking"),
			logging.String(logging.FieldImpact, "no session started while tracking is disabled"),
		)
		return ErrTrackingDisabled
	}
	entry := t.registry.getOrCreate(a.Worker)
	entry.queue.Enqueue(t.task(ctx, func(taskCtx context.Context) {
		t.handleSignal(taskCtx, entry, a)
	}))
	return nil
}

// StopWorking closes the worker's session. Time is logged against the
// stored branch, with the project and credentials supplied by the caller.
func (t *Tracker) StopWorking(ctx context.Context, a Activity) error {
	a = a.trimmed()
	if err := a.require("worker", "token", "branch", "project", "host"); err != nil {
		return err
	}
	if !t.Enabled() {
		logging.WarnWithContext(t.log(ctx), "declining stop signal", "stop_declined",
			logging.String(logging.FieldErrorHint, "sessions were already stopped when tracking was disabled"),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		return ErrTrackingDisabled
	}
	entry, ok := t.registry.lookup(a.Worker)
	if !ok {
		logging.WarnWithContext(t.log(ctx).With(logging.String(logging.FieldWorker, services.Redact(a.Worker))),
			"stop requested for untracked worker", "stop_untracked",
			logging.String(logging.FieldErrorHint, "the worker never signalled activity"),
			logging.String(logging.FieldImpact, "nothing to stop"),
		)
		return nil
	}
	entry.timer.Cancel()
	if !entry.isWorking() {
		return nil
	}
	entry.queue.Enqueue(t.task(ctx, func(taskCtx context.Context) {
		working, stored := entry.state()
		if !working {
			return
		}
		t.stopSession(taskCtx, entry, target{
			Branch:  stored.Branch,
			Project: a.Project,
			Host:    a.Host,
			Token:   a.Token,
		}, ReasonExplicit)
	}))
	return nil
}

// SetThreshold replaces the idle threshold. raw must be a non-negative
// integer and credential must match the configured secret. Setting zero
// stops every working worker.
func (t *Tracker) SetThreshold(ctx context.Context, raw, credential string) (int, error) {
	logger := t.log(ctx)
	if credential == "" {
		return 0, fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	value, err := ParseThreshold(raw)
	if err != nil {
		return 0, err
	}
	if t.secret == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(t.secret)) != 1 {
		logging.WarnWithContext(logger, "unauthorized max idle time change", "threshold_unauthorized",
			logging.Bool("secret_configured", t.secret != ""),
			logging.String(logging.FieldErrorHint, "check MAX_IDLE_TIME_PASSWORD"),
			logging.String(logging.FieldImpact, "threshold unchanged"),
		)
		return 0, ErrUnauthorized
	}

	previous := int(t.threshold.Swap(int64(value)))
	if value == 0 {
		active := t.sweep(ctx)
		logger.Info("tracking disabled",
			logging.String(logging.FieldEventType, "tracking_disabled"),
			logging.Int("previous", previous),
			logging.Int("active_workers", active),
		)
		if previous != 0 && t.notifier != nil {
			if err := t.notifier.NotifyTrackingDisabled(ctx, active); err != nil {
				t.notifyFailed(logger, err)
			}
		}
		return value, nil
	}

	logger.Info("max idle time updated",
		logging.String(logging.FieldEventType, "threshold_updated"),
		logging.Int("previous", previous),
		logging.Int("max_idle_time", value),
	)
	if previous == 0 && t.notifier != nil {
		if err := t.notifier.NotifyTrackingEnabled(ctx, value); err != nil {
			t.notifyFailed(logger, err)
		}
	}
	return value, nil
}

// ParseThreshold parses a threshold in whole seconds.
func ParseThreshold(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: time required", ErrInvalidInput)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q is not an integer", ErrInvalidInput, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: time must be >= 0", ErrInvalidInput)
	}
	if int64(value) > MaxThreshold {
		return 0, fmt.Errorf("%w: time must be <= %d", ErrInvalidInput, MaxThreshold)
	}
	return value, nil
}

// sweep cancels every timer and queues a stop for every entry. It returns the
// number of entries working when the sweep ran.
func (t *Tracker) sweep(ctx context.Context) int {
	active := 0
	for _, entry := range t.registry.all() {
		entry.timer.Cancel()
		if entry.isWorking() {
			active++
		}
		entry.queue.Enqueue(t.task(ctx, func(taskCtx context.Context) {
			t.stopIfWorking(taskCtx, entry, ReasonDisabled)
		}))
	}
	return active
}

// Status is a point-in-time view of the tracker.
type Status struct {
	Threshold int
	Enabled   bool
	Workers   []WorkerSnapshot
}

// Snapshot reports the threshold and every known worker.
func (t *Tracker) Snapshot() Status {
	threshold := t.Threshold()
	entries := t.registry.all()
	status := Status{
		Threshold: threshold,
		Enabled:   threshold > 0,
		Workers:   make([]WorkerSnapshot, 0, len(entries)),
	}
	for _, entry := range entries {
		status.Workers = append(status.Workers, entry.snapshot())
	}
	return status
}

// Drain waits until every task queued before the call has run.
func (t *Tracker) Drain(ctx context.Context) error {
	for _, entry := range t.registry.all() {
		select {
		case <-entry.queue.Barrier():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown cancels every idle timer. With stopSessions set it first queues a
// stop for every working worker and waits for the queues to drain.
func (t *Tracker) Shutdown(ctx context.Context, stopSessions bool) error {
	entries := t.registry.all()
	for _, entry := range entries {
		entry.timer.Cancel()
	}
	if !stopSessions {
		return nil
	}
	for _, entry := range entries {
		entry.queue.Enqueue(func(taskCtx context.Context) {
			t.stopIfWorking(taskCtx, entry, ReasonShutdown)
		})
	}
	err := t.Drain(ctx)
	for _, entry := range entries {
		entry.timer.Cancel()
	}
	if err != nil {
		return fmt.Errorf("drain worker queues: %w", err)
	}
	return nil
}

func (t *Tracker) handleSignal(ctx context.Context, entry *workerEntry, a Activity) {
	logger := t.log(ctx)
	if !t.Enabled() {
		logging.WarnWithContext(logger, "tracking disabled before signal ran", "signal_declined",
			logging.String(logging.FieldImpact, "no session started while tracking is disabled"),
		)
		return
	}

	working, stored := entry.state()
	next := targetOf(a)
	switch {
	case !working:
		t.startSession(ctx, entry, next)
	case stored.Branch != next.Branch || stored.Project != next.Project:
		logger.Info("branch or project changed, restarting session",
			logging.String(logging.FieldEventType, "session_restart"),
			logging.String("from_branch", stored.Branch),
			logging.String("to_branch", next.Branch),
		)
		t.stopSession(ctx, entry, stored, ReasonBranchChange)
		t.startSession(ctx, entry, next)
	default:
		entry.refresh(next)
	}

	t.arm(entry)
}

func (t *Tracker) startSession(ctx context.Context, entry *workerEntry, tgt target) {
	logger := t.log(ctx)
	entry.begin(tgt, t.now())

	if id, ok := t.timeTracking.Current(ctx, entry.id); ok {
		logger.Debug("session already running",
			logging.Int64("entry_id", id),
			logging.String("branch", tgt.Branch),
		)
		return
	}

	logger.Info("starting session",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("branch", tgt.Branch),
		logging.String("project", tgt.Project),
	)
	if _, ok := t.timeTracking.Start(ctx, entry.id, tgt.Project, tgt.Branch); !ok {
		logging.WarnWithContext(logger, "session start failed", "session_start_failed",
			logging.String("branch", tgt.Branch),
			logging.String(logging.FieldErrorHint, "see the toggl error above"),
			logging.String(logging.FieldImpact, "worker marked working without a remote session"),
		)
	}
}

func (t *Tracker) stopIfWorking(ctx context.Context, entry *workerEntry, reason StopReason) {
	working, stored := entry.state()
	if !working {
		return
	}
	t.stopSession(ctx, entry, stored, reason)
}

func (t *Tracker) stopSession(ctx context.Context, entry *workerEntry, tgt target, reason StopReason) {
	logger := t.log(ctx).With(logging.String("reason", string(reason)))
	startedAt := entry.end()
	if reason != ReasonBranchChange {
		entry.timer.Cancel()
	}

	logger.Info("stopping session",
		logging.String(logging.FieldEventType, "session_stop"),
		logging.String("branch", tgt.Branch),
	)
	elapsed, ok := t.timeTracking.Stop(ctx, entry.id)
	remote := ok && elapsed > 0
	if remote {
		t.issues.LogTime(ctx, elapsed, tgt.Host, tgt.Token, tgt.Project, tgt.Branch)
	} else {
		logging.WarnWithContext(logger, "not logging spent time, no duration from toggl", "spent_time_skipped",
			logging.String("branch", tgt.Branch),
			logging.String(logging.FieldErrorHint, "see the toggl error above"),
			logging.String(logging.FieldImpact, "spent time not recorded in gitlab"),
		)
	}

	session := Session{
		Worker:    entry.label,
		Branch:    tgt.Branch,
		Project:   tgt.Project,
		Host:      tgt.Host,
		Elapsed:   elapsed,
		Remote:    remote,
		Reason:    reason,
		StartedAt: startedAt,
		StoppedAt: t.now(),
	}
	if t.journal != nil {
		if err := t.journal.Record(ctx, session); err != nil {
			logging.WarnWithContext(logger, "history record failed", "history_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history.path permissions"),
				logging.String(logging.FieldImpact, "session missing from history"),
			)
		}
	}
	if reason == ReasonIdleTimeout && t.notifier != nil {
		if err := t.notifier.NotifyIdleStop(ctx, tgt.Branch, tgt.Project, elapsed); err != nil {
			t.notifyFailed(logger, err)
		}
	}
}

func (t *Tracker) arm(entry *workerEntry) {
	threshold := t.Threshold()
	if threshold <= 0 {
		entry.timer.Cancel()
		return
	}
	entry.timer.Reset(t.idleAfter(threshold), func(gen uint64) {
		entry.queue.Enqueue(func(ctx context.Context) {
			t.expire(ctx, entry, gen)
		})
	})
}

// idleAfter converts a threshold to a timer duration, saturating instead of
// overflowing when a custom unit is larger than a second.
func (t *Tracker) idleAfter(threshold int) time.Duration {
	if int64(threshold) > math.MaxInt64/int64(t.unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(threshold) * t.unit
}

func (t *Tracker) expire(ctx context.Context, entry *workerEntry, gen uint64) {
	if !entry.timer.Expire(gen) {
		t.log(ctx).Debug("stale idle timeout ignored")
		return
	}
	if !entry.isWorking() {
		return
	}
	t.log(ctx).Info("idle timeout reached",
		logging.String(logging.FieldEventType, "idle_timeout"),
	)
	t.stopIfWorking(ctx, entry, ReasonIdleTimeout)
}

// task binds a request's correlation id to work that runs after the request
// has returned.
func (t *Tracker) task(ctx context.Context, fn Task) Task {
	rid, _ := services.RequestIDFromContext(ctx)
	return func(taskCtx context.Context) {
		fn(services.WithRequestID(taskCtx, rid))
	}
}

func (t *Tracker) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, t.logger)
}

func (t *Tracker) notifyFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "push notification not delivered"),
	)
}
