package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"asrtt/internal/apiclient"
	"asrtt/internal/config"
)

var errServerUnreachable = errors.New("server unreachable")

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) serverURL() string {
	if c.serverFlag != nil {
		if value := strings.TrimSpace(*c.serverFlag); value != "" {
			if !strings.Contains(value, "://") {
				value = "http://" + value
			}
			return value
		}
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.BaseURL()
	}
	return "http://127.0.0.1:1337"
}

func (c *commandContext) client() *apiclient.Client {
	var opts []apiclient.Option
	if cfg, err := c.ensureConfig(); err == nil && cfg.Server.APIToken != "" {
		opts = append(opts, apiclient.WithToken(cfg.Server.APIToken))
	}
	return apiclient.New(c.serverURL(), opts...)
}

// wrapClientError turns transport failures into actionable messages.
func (c *commandContext) wrapClientError(err error) error {
	if err == nil {
		return nil
	}
	server := c.serverURL()
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %s refused the connection; start it with `asrtt serve`", errServerUnreachable, server)
	case errors.As(err, &opErr):
		return fmt.Errorf("%w: %s: %v", errServerUnreachable, server, err)
	case errors.Is(err, apiclient.ErrUnauthorized):
		return fmt.Errorf("server rejected the API token; check server.api_token")
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
