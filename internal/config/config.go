package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAddressPlaceholder is rendered in place of the caller address when
// the request carries none.
const DefaultAddressPlaceholder = "UNDADRESSED"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Page    PageConfig    `yaml:"page"`
	Metrics MetricsConfig `yaml:"metrics"`
	Privacy PrivacyConfig `yaml:"privacy"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	Host              string        `yaml:"host"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type StreamConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxConnections int           `yaml:"max_connections"` // 0 = unlimited
	WSPingInterval time.Duration `yaml:"ws_ping_interval"`
	WSWriteTimeout time.Duration `yaml:"ws_write_timeout"`
}

type PageConfig struct {
	Owner              string `yaml:"owner"`
	AddressPlaceholder string `yaml:"address_placeholder"`
	TrustForwardedFor  bool   `yaml:"trust_forwarded_for"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PrivacyConfig controls what /api/status reveals about open streams.
type PrivacyConfig struct {
	MaskSessionIDs   bool     `yaml:"mask_session_ids"`
	HiddenTransports []string `yaml:"hidden_transports"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			Host:              "0.0.0.0",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Stream: StreamConfig{
			PollInterval:   300 * time.Millisecond,
			SendBuffer:     64,
			WSPingInterval: 30 * time.Second,
			WSWriteTimeout: 10 * time.Second,
		},
		Page: PageConfig{
			Owner:              "Robin",
			AddressPlaceholder: DefaultAddressPlaceholder,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is an error; use LoadOrDefault when the file is optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides the listen address from PORT and HOST when set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Stream.PollInterval <= 0 {
		return fmt.Errorf("stream.poll_interval must be positive, got %v", c.Stream.PollInterval)
	}
	if c.Stream.SendBuffer < 1 {
		return fmt.Errorf("stream.send_buffer must be at least 1, got %d", c.Stream.SendBuffer)
	}
	if c.Stream.MaxConnections < 0 {
		return fmt.Errorf("stream.max_connections must not be negative, got %d", c.Stream.MaxConnections)
	}
	if c.Page.AddressPlaceholder == "" {
		c.Page.AddressPlaceholder = DefaultAddressPlaceholder
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
