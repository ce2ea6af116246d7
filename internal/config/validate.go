package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// maxIdleTimeLimit is the largest max_idle_time whose duration in seconds
// fits a time.Duration.
const maxIdleTimeLimit = math.MaxInt64 / int64(time.Second)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateToggl(); err != nil {
		return err
	}
	if err := c.validateGitLab(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.MaxIdleTime < 0 {
		return errors.New("tracking.max_idle_time must be >= 0")
	}
	if int64(c.Tracking.MaxIdleTime) > maxIdleTimeLimit {
		return fmt.Errorf("tracking.max_idle_time must be <= %d, got %d", maxIdleTimeLimit, c.Tracking.MaxIdleTime)
	}
	return nil
}

func (c *Config) validateToggl() error {
	parsed, err := url.Parse(c.Toggl.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("toggl.base_url must be an absolute URL, got %q", c.Toggl.BaseURL)
	}
	return nil
}

func (c *Config) validateGitLab() error {
	switch c.GitLab.Scheme {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("gitlab.scheme must be http or https, got %q", c.GitLab.Scheme)
	}
}
