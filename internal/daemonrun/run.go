package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"asrtt/internal/config"
	"asrtt/internal/daemon"
	"asrtt/internal/history"
	"asrtt/internal/logging"
	"asrtt/internal/notifications"
	"asrtt/internal/services/gitlab"
	"asrtt/internal/services/toggl"
	"asrtt/internal/tracker"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the asrtt server and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("asrtt-%s.log", runID))

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update asrtt.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "asrtt-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	notifier := notifications.NewService(cfg)
	trackerOpts := tracker.Options{
		TimeTracking: toggl.NewService(cfg, logger),
		IssueTracker: gitlab.NewService(cfg, logger),
		Notifier:     notifier,
		Logger:       logger,
		Secret:       cfg.Server.MaxIdleTimePassword,
		Threshold:    cfg.Tracking.MaxIdleTime,
	}

	var hist daemon.HistoryReader
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
		pruneHistory(signalCtx, logger, store, cfg.Logging.RetentionDays)
		trackerOpts.Journal = store
		hist = store
	}

	tr, err := tracker.New(trackerOpts)
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}

	d, err := daemon.New(cfg, tr, hist, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "server start failed", "server_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other instance holds the lock and the port is free"),
			logging.String(logging.FieldImpact, "activity signals will not be accepted"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("asrtt server shutting down",
		logging.Bool("stop_on_shutdown", cfg.Tracking.StopOnShutdown),
	)
	d.Stop(context.Background())
	return nil
}

// pruneHistory drops journal rows older than the log retention window.
func pruneHistory(ctx context.Context, logger *slog.Logger, store *history.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("pruned history",
			logging.Int64("removed", removed),
			logging.Int("retention_days", retentionDays),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "asrtt.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("listen", cfg.ListenAddress()),
		logging.Int("max_idle_time", cfg.Tracking.MaxIdleTime),
		logging.Bool("control_enabled", cfg.ControlEnabled()),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Server.APIToken) != ""),
		logging.Bool("stop_on_shutdown", cfg.Tracking.StopOnShutdown),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("toggl_base_url", cfg.Toggl.BaseURL),
		logging.String("gitlab_scheme", cfg.GitLab.Scheme),
	)
}
