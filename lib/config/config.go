// Package config provides configuration loading for the hxsignup server.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// MinKeyLen is the shortest props key accepted from configuration.
const MinKeyLen = 16

// Config represents the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Form    FormConfig    `yaml:"form"`
	DevAPI  DevAPIConfig  `yaml:"devapi"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Addr is the listen address (default: :8080)
	Addr string `yaml:"addr"`
	// Key signs and encrypts component props. Empty means a random key
	// per process, which invalidates open forms on restart.
	Key string `yaml:"key"`
}

// BackendConfig configures the registration endpoint
type BackendConfig struct {
	// BaseURL is prepended to /register. Empty means this server's own
	// dev API, derived from server.addr.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a single registration request
	Timeout time.Duration `yaml:"timeout"`
}

// FormConfig configures registration form instances
type FormConfig struct {
	// LoginPath is where the browser goes after a successful registration
	LoginPath string `yaml:"login_path"`
	// IdleTTL is how long an untouched form instance is kept
	IdleTTL time.Duration `yaml:"idle_ttl"`
	// SweepSchedule is the cron spec for expiring idle instances
	SweepSchedule string `yaml:"sweep_schedule"`
}

// DevAPIConfig configures the bundled development backend
type DevAPIConfig struct {
	Enabled bool `yaml:"enabled"`
	// DSN is the SQLite data source (default: in-memory)
	DSN string `yaml:"dsn"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Form: FormConfig{
			LoginPath:     "/login",
			IdleTTL:       30 * time.Minute,
			SweepSchedule: "@every 1m",
		},
		DevAPI: DevAPIConfig{
			Enabled: true,
			DSN:     "file:hxsignup?mode=memory&cache=shared",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.Key != "" && len(c.Server.Key) < MinKeyLen {
		return fmt.Errorf("server.key must be at least %d bytes", MinKeyLen)
	}
	if c.Backend.BaseURL == "" {
		if !c.DevAPI.Enabled {
			return fmt.Errorf("backend.base_url is required when devapi is disabled")
		}
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			return fmt.Errorf("server.addr: %w", err)
		}
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if !strings.HasPrefix(c.Form.LoginPath, "/") {
		return fmt.Errorf("form.login_path must start with /")
	}
	if c.Form.IdleTTL <= 0 {
		return fmt.Errorf("form.idle_ttl must be positive")
	}
	if _, err := cron.ParseStandard(c.Form.SweepSchedule); err != nil {
		return fmt.Errorf("form.sweep_schedule: %w", err)
	}
	if c.DevAPI.Enabled && c.DevAPI.DSN == "" {
		return fmt.Errorf("devapi.dsn is required when devapi is enabled")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// BackendURL returns the registration backend base URL. With base_url
// unset it points at this server's listen address.
func (c *Config) BackendURL() string {
	if c.Backend.BaseURL != "" {
		return c.Backend.BaseURL
	}
	return "http://" + selfHost(c.Server.Addr)
}

// Warnings reports settings that validate but are likely mistakes.
func (c *Config) Warnings() []string {
	var out []string
	if c.DevAPI.Enabled && c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		_, listenPort, _ := net.SplitHostPort(c.Server.Addr)
		if err == nil && u.Port() != listenPort {
			out = append(out, fmt.Sprintf(
				"devapi is enabled but backend.base_url %s does not point at server.addr %s",
				c.Backend.BaseURL, c.Server.Addr))
		}
	}
	return out
}

// selfHost turns a listen address into a dialable host:port.
func selfHost(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// SlogLevel returns the configured log level, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
	return level, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load returns the defaults when path is empty, otherwise the file's
// contents. Overrides run next, then the result is validated.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		var err error
		if config, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	for _, o := range overrides {
		o(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Marshal renders the configuration as YAML, with the key redacted.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.Server.Key != "" {
		out.Server.Key = "REDACTED"
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
