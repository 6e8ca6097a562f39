package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"dockhand/internal/errors"
	"dockhand/internal/registry"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".dockhand.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/dockhand"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix namespaces environment overrides, e.g. DOCKHAND_REMOTE_HOST.
	EnvPrefix = "DOCKHAND"
)

// Load reads config from the specified path, layering a .env file and
// DOCKHAND_* environment variables over it.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Create "+ConfigFileName+" or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v)
}

// LoadOrDefault loads config from the found path, or returns defaults
// plus environment overrides when no file exists.
func LoadOrDefault() (*Config, error) {
	path, err := Find("")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return parseConfig(newViper())
	}
	return Load(path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .dockhand.yaml in current directory
// 3. ~/.config/dockhand/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// newViper builds a viper instance with env layering enabled. A .env file
// in the working directory is folded into the process environment first,
// so DOCKHAND_REMOTE_HOST works from either place.
func newViper() *viper.Viper {
	_ = godotenv.Load() // absence of .env is fine

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env vars only override keys viper knows about, so register them
	defaults := Default()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("remote.host", defaults.Remote.Host)
	v.SetDefault("remote.user", defaults.Remote.User)
	v.SetDefault("remote.port", defaults.Remote.Port)
	v.SetDefault("remote.key_path", defaults.Remote.KeyPath)
	v.SetDefault("remote.connect_timeout", defaults.Remote.ConnectTimeout)
	v.SetDefault("remote.command_timeout", defaults.Remote.CommandTimeout)
	v.SetDefault("metrics.host", defaults.Metrics.Host)
	v.SetDefault("metrics.port", defaults.Metrics.Port)
	v.SetDefault("metrics.api_version", defaults.Metrics.APIVersion)
	v.SetDefault("metrics.timeout", defaults.Metrics.Timeout)
	v.SetDefault("cache.metrics_ttl", defaults.Cache.MetricsTTL)
	v.SetDefault("cache.health_ttl", defaults.Cache.HealthTTL)
	v.SetDefault("cache.history_window", defaults.Cache.HistoryWindow)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("services_file", "")

	return v
}

func parseConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse config",
			"Check the config file structure matches the documentation")
	}

	// Metrics endpoint defaults to the managed host itself
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = cfg.Remote.Host
	}

	if cfg.Services == nil {
		cfg.Services = map[string]registry.Descriptor{}
	}
	if cfg.ServicesFile != "" {
		fileServices, err := LoadServices(cfg.ServicesFile)
		if err != nil {
			return nil, err
		}
		// Inline entries win over file entries
		for id, d := range fileServices {
			if _, exists := cfg.Services[id]; !exists {
				cfg.Services[id] = d
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServices reads a standalone managed-services table, a YAML mapping
// of service id to descriptor.
func LoadServices(path string) (map[string]registry.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read services file: "+path,
			"Check the services_file path in your config")
	}

	services := map[string]registry.Descriptor{}
	if err := yaml.Unmarshal(data, &services); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't parse services file: "+path,
			"The file must be a YAML mapping of service id to descriptor")
	}
	return services, nil
}
