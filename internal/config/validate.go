package config

import (
	"fmt"

	"dockhand/internal/errors"
)

// Validate checks the configuration for values that can't work.
func (c *Config) Validate() error {
	if c.Remote.Host == "" {
		return errors.New(errors.ErrConfig,
			"No remote host configured",
			"Set remote.host in "+ConfigFileName+" or export DOCKHAND_REMOTE_HOST")
	}
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Remote port %d is out of range", c.Remote.Port),
			"Ports must be between 1 and 65535")
	}
	if c.Remote.ConnectTimeout <= 0 || c.Remote.CommandTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"Remote timeouts must be positive",
			"Check remote.connect_timeout and remote.command_timeout")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Metrics port %d is out of range", c.Metrics.Port),
			"Ports must be between 1 and 65535")
	}
	if c.Cache.MetricsTTL < 0 || c.Cache.HealthTTL < 0 {
		return errors.New(errors.ErrConfig,
			"Cache TTLs must not be negative",
			"Use 0 to disable caching, or a positive duration")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server port %d is out of range", c.Server.Port),
			"Ports must be between 1 and 65535")
	}

	for id, d := range c.Services {
		if id == "" {
			return errors.New(errors.ErrConfig,
				"A service has an empty id",
				"Every services entry needs a non-empty key")
		}
		if d.Port < 0 || d.Port > 65535 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Service '%s' has port %d out of range", id, d.Port),
				"Service ports must be between 0 and 65535 (0 means no probe)")
		}
	}

	return nil
}
