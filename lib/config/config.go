// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "TERMSHARE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the termshare daemon.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Control configures the control channel to the remote server.
	Control ControlConfig `yaml:"control"`

	// Session is the identity announced in the control header.
	Session SessionConfig `yaml:"session"`

	// Tmux selects the shared terminal session.
	Tmux TmuxConfig `yaml:"tmux"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Control *ControlConfig `yaml:"control,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// ControlConfig configures the control channel.
type ControlConfig struct {
	// Enabled toggles the whole control channel. When false no
	// connection is made and every notification is a no-op.
	Enabled bool `yaml:"enabled"`

	// Host and Port locate the control server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ConnectTimeout bounds the synchronous connect at startup.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReceiveBufferSize is the fixed capacity of the inbound decoder
	// buffer. A single message larger than this is fatal.
	// Default: 65536
	ReceiveBufferSize int `yaml:"receive_buffer_size"`

	// ConnectionTemplate is the command users run to join, with %s
	// standing for the session token (e.g., "ssh %s@share.example.com").
	ConnectionTemplate string `yaml:"connection_template"`

	// ShutdownTimeout bounds how long the daemon waits, after sending
	// fin on shutdown, for the control server to close the connection.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SessionConfig is the identity of the sharing session.
type SessionConfig struct {
	// Username, IPAddress and PublicKey identify the ssh client that
	// owns the session. PublicKey may be empty.
	Username  string `yaml:"username"`
	IPAddress string `yaml:"ip_address"`
	PublicKey string `yaml:"public_key"`

	// Token and ReadOnlyToken are the read-write and read-only session
	// tokens.
	Token         string `yaml:"token"`
	ReadOnlyToken string `yaml:"read_only_token"`

	// ClientVersion and ClientProtocolVersion describe the terminal
	// client that started the session.
	ClientVersion         string `yaml:"client_version"`
	ClientProtocolVersion int    `yaml:"client_protocol_version"`

	// Exec is a command the session owner asked the control server to
	// run on their behalf, forwarded once after the header. Empty sends
	// nothing.
	Exec string `yaml:"exec"`
}

// TmuxConfig selects the tmux server and session being shared.
type TmuxConfig struct {
	// Socket is the tmux server socket path.
	// Default: /run/termshare/tmux.sock
	Socket string `yaml:"socket"`

	// Session is the tmux session name.
	// Default: termshare
	Session string `yaml:"session"`

	// ClientPollInterval is how often attached tmux clients are listed
	// to announce joins and departures. Zero disables the polling.
	// Default: 1s
	ClientPollInterval time.Duration `yaml:"client_poll_interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for the /metrics HTTP endpoint. Empty
	// disables it.
	Listen string `yaml:"listen"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// SlogLevel maps Level onto a slog level. Unknown values map to info;
// Validate rejects them before this is called.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default configuration. These defaults are used as
// a base before loading the config file; the file is still required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Control: ControlConfig{
			Enabled:           true,
			Port:              4002,
			ConnectTimeout:    10 * time.Second,
			ReceiveBufferSize: 64 * 1024,
			ShutdownTimeout:   5 * time.Second,
		},
		Session: SessionConfig{
			ClientProtocolVersion: 6,
		},
		Tmux: TmuxConfig{
			Socket:             "/run/termshare/tmux.sock",
			Session:            "termshare",
			ClientPollInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the TERMSHARE_CONFIG environment variable.
// If it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your termshare.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Level: "info", Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if control := overrides.Control; control != nil {
		// Enabled is a bool, so it is always applied from overrides.
		c.Control.Enabled = control.Enabled
		if control.Host != "" {
			c.Control.Host = control.Host
		}
		if control.Port != 0 {
			c.Control.Port = control.Port
		}
		if control.ConnectTimeout != 0 {
			c.Control.ConnectTimeout = control.ConnectTimeout
		}
		if control.ReceiveBufferSize != 0 {
			c.Control.ReceiveBufferSize = control.ReceiveBufferSize
		}
		if control.ConnectionTemplate != "" {
			c.Control.ConnectionTemplate = control.ConnectionTemplate
		}
		if control.ShutdownTimeout != 0 {
			c.Control.ShutdownTimeout = control.ShutdownTimeout
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}

	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Tmux.Socket = expandVars(c.Tmux.Socket, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// minimumReceiveBufferSize keeps the decoder able to hold a header-sized
// message.
const minimumReceiveBufferSize = 1024

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Control.Enabled {
		if c.Control.Host == "" {
			errs = append(errs, errors.New("control.host is required when the control channel is enabled"))
		}
		if c.Control.Port <= 0 || c.Control.Port > 65535 {
			errs = append(errs, fmt.Errorf("control.port %d out of range", c.Control.Port))
		}
		if c.Control.ReceiveBufferSize < minimumReceiveBufferSize {
			errs = append(errs, fmt.Errorf("control.receive_buffer_size %d is below the minimum %d",
				c.Control.ReceiveBufferSize, minimumReceiveBufferSize))
		}
		if strings.Count(c.Control.ConnectionTemplate, "%s") != 1 {
			errs = append(errs, fmt.Errorf("control.connection_template %q must contain exactly one %%s",
				c.Control.ConnectionTemplate))
		}
		if c.Session.Token == "" || c.Session.ReadOnlyToken == "" {
			errs = append(errs, errors.New("session.token and session.read_only_token are required"))
		}
		if c.Control.ShutdownTimeout < 0 {
			errs = append(errs, fmt.Errorf("control.shutdown_timeout %s is negative", c.Control.ShutdownTimeout))
		}
	}

	if c.Tmux.Socket == "" {
		errs = append(errs, errors.New("tmux.socket is required"))
	}
	if c.Tmux.Session == "" {
		errs = append(errs, errors.New("tmux.session is required"))
	}
	if c.Tmux.ClientPollInterval < 0 {
		errs = append(errs, fmt.Errorf("tmux.client_poll_interval %s is negative", c.Tmux.ClientPollInterval))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %s", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("invalid log.format: %s", c.Log.Format))
	}

	return errors.Join(errs...)
}
