package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains listener and control-plane settings.
type Server struct {
	Bind                string `toml:"bind"`
	Port                int    `toml:"port"`
	MaxIdleTimePassword string `toml:"max_idle_time_password"`
	APIToken            string `toml:"api_token"`
	ShutdownTimeout     int    `toml:"shutdown_timeout"`
}

// Tracking contains idle-threshold behaviour.
type Tracking struct {
	// MaxIdleTime is the initial idle threshold in seconds. Zero starts the
	// server with tracking disabled.
	MaxIdleTime    int  `toml:"max_idle_time"`
	StopOnShutdown bool `toml:"stop_on_shutdown"`
}

// Toggl contains configuration for the Toggl Track API.
type Toggl struct {
	BaseURL        string `toml:"base_url"`
	CreatedWith    string `toml:"created_with"`
	RequestTimeout int    `toml:"request_timeout"`
}

// GitLab contains configuration for spent-time logging. The host itself comes
// from each activity signal.
type GitLab struct {
	Scheme         string `toml:"scheme"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	IdleStop        bool   `toml:"idle_stop"`
	TrackingToggled bool   `toml:"tracking_toggled"`
}

// History contains configuration for the closed-session journal.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for asrtt.
//
// Configuration sections by subsystem:
//   - Server: listen address, control secret, API token
//   - Tracking: initial idle threshold and shutdown behaviour
//   - Toggl: time-tracking API endpoint and timeouts
//   - GitLab: issue-tracker scheme and timeouts
//   - Notifications: ntfy push notification settings
//   - History: sqlite journal of closed sessions
//   - Paths: state and log directories
//   - Logging: log format, level, and retention
type Config struct {
	Server        Server        `toml:"server"`
	Tracking      Tracking      `toml:"tracking"`
	Toggl         Toggl         `toml:"toggl"`
	GitLab        GitLab        `toml:"gitlab"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("asrtt.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// ListenAddress returns the host:port the HTTP server binds to.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

// BaseURL returns the URL a local client uses to reach the server.
func (c *Config) BaseURL() string {
	host := c.Server.Bind
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// ControlEnabled reports whether the idle-threshold control endpoint can be used.
func (c *Config) ControlEnabled() bool {
	return c.Server.MaxIdleTimePassword != ""
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "asrtt.lock")
}

// PIDPath returns the pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "asrtt.pid")
}

// ShutdownTimeout returns the graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// TogglTimeout returns the per-request timeout for Toggl calls.
func (c *Config) TogglTimeout() time.Duration {
	return time.Duration(c.Toggl.RequestTimeout) * time.Second
}

// GitLabTimeout returns the per-request timeout for GitLab calls.
func (c *Config) GitLabTimeout() time.Duration {
	return time.Duration(c.GitLab.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with secrets masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	masked.Server.MaxIdleTimePassword = maskSecret(masked.Server.MaxIdleTimePassword)
	masked.Server.APIToken = maskSecret(masked.Server.APIToken)
	out, err := toml.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}
