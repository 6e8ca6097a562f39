package config

import (
	"time"

	"dockhand/internal/registry"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config is the complete dockhand configuration.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	Remote  RemoteConfig  `yaml:"remote" mapstructure:"remote"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`

	// Services is the managed-services table, keyed by service id.
	// Entries from ServicesFile are merged in underneath; inline entries
	// win on conflict.
	Services map[string]registry.Descriptor `yaml:"services" mapstructure:"services"`

	// ServicesFile optionally points at a standalone YAML file holding
	// the services table, so the table can be shared or generated.
	ServicesFile string `yaml:"services_file" mapstructure:"services_file"`
}

// RemoteConfig describes the Docker host this dashboard manages.
type RemoteConfig struct {
	// Host is a hostname, IP, or SSH config alias.
	Host string `yaml:"host" mapstructure:"host"`
	User string `yaml:"user" mapstructure:"user"`
	Port int    `yaml:"port" mapstructure:"port"`

	// KeyPath is the private key used to authenticate. Auth is key-based
	// only; there is no password fallback.
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`

	// ConnectTimeout bounds the SSH dial, CommandTimeout a single
	// remote command.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
}

// MetricsConfig points at the external metrics endpoint on the remote host.
type MetricsConfig struct {
	Host       string        `yaml:"host" mapstructure:"host"`
	Port       int           `yaml:"port" mapstructure:"port"`
	APIVersion int           `yaml:"api_version" mapstructure:"api_version"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig tunes the TTL caches and the snapshot history.
type CacheConfig struct {
	MetricsTTL    time.Duration `yaml:"metrics_ttl" mapstructure:"metrics_ttl"`
	HealthTTL     time.Duration `yaml:"health_ttl" mapstructure:"health_ttl"`
	HistoryWindow time.Duration `yaml:"history_window" mapstructure:"history_window"`
}

// ServerConfig tunes the HTTP surface. WriteTimeout is deliberately its
// own knob: a long container-stop grace period only stretches the remote
// docker command, never the HTTP server's own deadline.
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// Default returns the built-in configuration. Everything here can be
// overridden by the config file or DOCKHAND_* environment variables.
func Default() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Remote: RemoteConfig{
			Port:           22,
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Port:       61208,
			APIVersion: 4,
			Timeout:    5 * time.Second,
		},
		Cache: CacheConfig{
			MetricsTTL:    60 * time.Second,
			HealthTTL:     60 * time.Second,
			HistoryWindow: 24 * time.Hour,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Services: map[string]registry.Descriptor{},
	}
}
