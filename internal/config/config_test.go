package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"asrtt/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PORT", "")
	t.Setenv("MAX_IDLE_TIME_PASSWORD", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "asrtt")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.History.Path != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.History.Path)
	}
	if cfg.Server.Port != 1337 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.ListenAddress() != "127.0.0.1:1337" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress())
	}
	if cfg.Tracking.MaxIdleTime != 180 {
		t.Fatalf("unexpected max idle time: %d", cfg.Tracking.MaxIdleTime)
	}
	if cfg.ControlEnabled() {
		t.Fatal("expected control endpoint disabled without password")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadHonoursEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "4242")
	t.Setenv("MAX_IDLE_TIME_PASSWORD", "hunter2")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxIdleTimePassword != "hunter2" {
		t.Fatalf("expected password from env, got %q", cfg.Server.MaxIdleTimePassword)
	}
	if !cfg.ControlEnabled() {
		t.Fatal("expected control endpoint enabled")
	}
}

func TestLoadRejectsInvalidPortEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "not-a-port")

	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("MAX_IDLE_TIME_PASSWORD", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "asrtt.toml")

	type payload struct {
		Server struct {
			Port                int    `toml:"port"`
			MaxIdleTimePassword string `toml:"max_idle_time_password"`
		} `toml:"server"`
		Tracking struct {
			MaxIdleTime int `toml:"max_idle_time"`
		} `toml:"tracking"`
		Toggl struct {
			BaseURL string `toml:"base_url"`
		} `toml:"toggl"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Server.Port = 8080
	custom.Server.MaxIdleTimePassword = "secret"
	custom.Tracking.MaxIdleTime = 0
	custom.Toggl.BaseURL = "http://localhost:9999/api/v9/"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Tracking.MaxIdleTime != 0 {
		t.Fatalf("expected tracking disabled at startup, got %d", cfg.Tracking.MaxIdleTime)
	}
	if cfg.Toggl.BaseURL != "http://localhost:9999/api/v9" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Toggl.BaseURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative idle time", func(c *config.Config) { c.Tracking.MaxIdleTime = -1 }, "tracking.max_idle_time"},
		{"idle time beyond duration range", func(c *config.Config) { c.Tracking.MaxIdleTime = 10_000_000_000 }, "tracking.max_idle_time"},
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative toggl url", func(c *config.Config) { c.Toggl.BaseURL = "toggl" }, "toggl.base_url"},
		{"bad scheme", func(c *config.Config) { c.GitLab.Scheme = "ftp" }, "gitlab.scheme"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxIdleTimePassword = "hunter2"
	cfg.Server.APIToken = "token"

	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if strings.Contains(string(out), "hunter2") || strings.Contains(string(out), "\"token\"") {
		t.Fatalf("expected secrets masked, got %s", out)
	}
	if cfg.Server.MaxIdleTimePassword != "hunter2" {
		t.Fatal("Encode must not mutate the receiver")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Tracking.MaxIdleTime != 180 {
		t.Fatalf("unexpected sample idle time: %d", cfg.Tracking.MaxIdleTime)
	}
}
