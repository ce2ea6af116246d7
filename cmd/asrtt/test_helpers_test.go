package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"asrtt/internal/config"
	"asrtt/internal/daemon"
	"asrtt/internal/history"
	"asrtt/internal/logging"
	"asrtt/internal/testsupport"
	"asrtt/internal/tracker"
)

type recordingTimeTracking struct {
	mu   sync.Mutex
	open map[string]bool
}

func (r *recordingTimeTracking) Start(_ context.Context, token, _, _ string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[token] = true
	return 1, true
}

func (r *recordingTimeTracking) Current(_ context.Context, token string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return 1, r.open[token]
}

func (r *recordingTimeTracking) Stop(_ context.Context, token string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open[token] {
		return 0, false
	}
	r.open[token] = false
	return 95 * time.Second, true
}

type nopIssues struct{}

func (nopIssues) LogTime(context.Context, time.Duration, string, string, string, string) {}

type cliTestEnv struct {
	cfg        *config.Config
	tracker    *tracker.Tracker
	daemon     *daemon.Daemon
	history    *history.Store
	configPath string
	serverURL  string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenHistory(t, cfg)

	tr, err := tracker.New(tracker.Options{
		TimeTracking: &recordingTimeTracking{open: make(map[string]bool)},
		IssueTracker: nopIssues{},
		Journal:      store,
		Logger:       logging.NewNop(),
		Secret:       cfg.Server.MaxIdleTimePassword,
		Threshold:    cfg.Tracking.MaxIdleTime,
	})
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	d, err := daemon.New(cfg, tr, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		tracker:    tr,
		daemon:     d,
		history:    store,
		configPath: configPath,
		serverURL:  "http://" + d.Address(),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, serverURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if serverURL != "" {
		flags = append(flags, "--server", serverURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", needle, haystack)
	}
}

func (env *cliTestEnv) signal(t *testing.T, token, branch string) {
	t.Helper()
	err := env.tracker.Signal(context.Background(), tracker.Activity{
		Worker:  token,
		Branch:  branch,
		Project: "group/app",
		Host:    "gitlab.example.com",
		Token:   "glpat",
	})
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	env.drain(t)
}

func (env *cliTestEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.tracker.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
