package config

const (
	defaultConfigPath          = "~/.config/asrtt/config.toml"
	defaultBind                = "127.0.0.1"
	defaultPort                = 1337
	defaultShutdownTimeout     = 10
	defaultMaxIdleTime         = 3 * 60
	defaultTogglBaseURL        = "https://api.track.toggl.com/api/v9"
	defaultTogglCreatedWith    = "asrtt"
	defaultTogglRequestTimeout = 15
	defaultGitLabScheme        = "https"
	defaultGitLabTimeout       = 15
	defaultNotifyTimeout       = 10
	defaultStateDir            = "~/.local/share/asrtt"
	defaultLogDir              = "~/.local/share/asrtt/logs"
	defaultHistoryFile         = "history.db"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:            defaultBind,
			Port:            defaultPort,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Tracking: Tracking{
			MaxIdleTime: defaultMaxIdleTime,
		},
		Toggl: Toggl{
			BaseURL:        defaultTogglBaseURL,
			CreatedWith:    defaultTogglCreatedWith,
			RequestTimeout: defaultTogglRequestTimeout,
		},
		GitLab: GitLab{
			Scheme:         defaultGitLabScheme,
			RequestTimeout: defaultGitLabTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyTimeout,
			IdleStop:        true,
			TrackingToggled: true,
		},
		History: History{
			Enabled: true,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
