package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"asrtt/internal/api"
	"asrtt/internal/config"
	"asrtt/internal/history"
	"asrtt/internal/logging"
	"asrtt/internal/tracker"
)

// HistoryReader returns recently closed sessions.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Daemon owns the server lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracker *tracker.Tracker
	history HistoryReader
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
}

// New constructs a daemon. hist may be nil when the journal is disabled.
func New(cfg *config.Config, tr *tracker.Tracker, hist HistoryReader, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || tr == nil {
		return nil, errors.New("daemon requires config and tracker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		tracker:  tr,
		history:  hist,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and begins serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another asrtt server instance is already running")
	}

	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	if !d.cfg.ControlEnabled() {
		logging.WarnWithContext(d.logger, "MAX_IDLE_TIME_PASSWORD is not set", "control_disabled",
			logging.String(logging.FieldErrorHint, "set server.max_idle_time_password or MAX_IDLE_TIME_PASSWORD"),
			logging.String(logging.FieldImpact, "you will not be able to update the maximum idle time"),
		)
	}
	d.logger.Info("asrtt server started",
		logging.String("address", d.api.address()),
		logging.String("lock", d.lockPath),
		logging.Int("max_idle_time", d.tracker.Threshold()),
	)
	return nil
}

// Stop stops serving, drains the tracker, and releases the lock. Sessions
// are closed first when tracking.stop_on_shutdown is set.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	timeout := d.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.api.stop(shutdownCtx)
	if err := d.tracker.Shutdown(shutdownCtx, d.cfg.Tracking.StopOnShutdown); err != nil {
		logging.WarnWithContext(d.logger, "tracker shutdown incomplete", "shutdown_incomplete",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout"),
			logging.String(logging.FieldImpact, "some remote sessions may remain open"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("asrtt server stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop(context.Background())
	return nil
}

// Running reports whether the daemon is serving.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Address returns the bound listener address, or "" before Start.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current server status.
func (d *Daemon) Status() api.StatusResponse {
	resp := api.FromTrackerStatus(d.tracker.Snapshot())
	resp.ControlEnabled = d.cfg.ControlEnabled()
	resp.HistoryEnabled = d.history != nil
	resp.PID = os.Getpid()
	if d.running.Load() {
		resp.StartedAt = d.startedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return resp
}

// History returns recently closed sessions.
func (d *Daemon) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	if d.history == nil {
		return []api.HistoryEntry{}, nil
	}
	entries, err := d.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return api.FromHistoryEntries(entries), nil
}
