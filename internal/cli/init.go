package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dockhand/internal/config"
	"dockhand/internal/errors"
)

var (
	initHostFlag string
	initForce    bool
)

// initCmd creates a starter .dockhand.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create " + config.ConfigFileName + " configuration",
	Long: `Write a starter configuration file in the current directory.

The file documents every setting; edit remote.host at minimum, then run
'dockhand check' to verify connectivity.

Examples:
  dockhand init
  dockhand init --host tower
  dockhand init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initHostFlag, initForce)
	},
}

func init() {
	initCmd.Flags().StringVar(&initHostFlag, "host", "", "pre-fill the remote host")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")

	rootCmd.AddCommand(initCmd)
}

const configTemplate = `version: 1

remote:
  # Hostname, IP, or ~/.ssh/config alias of the Docker host.
  host: %s
  # user: admin
  # port: 22
  # key_path: ~/.ssh/id_ed25519
  # connect_timeout: 10s
  # command_timeout: 30s

# metrics:
#   host: ""       # defaults to remote.host
#   port: 61208
#   api_version: 4
#   timeout: 5s

# cache:
#   metrics_ttl: 60s
#   health_ttl: 60s
#   history_window: 24h

# server:
#   host: 127.0.0.1
#   port: 8080

# Managed services, keyed by id. container_name pins the match when the
# container is not named after the service.
services:
  sonarr:
    name: Sonarr
    port: 8989
    category: media
  # plex:
  #   name: Plex
  #   port: 32400
  #   category: media
  #   container_name: plex-media-server

# Or keep the table in its own file:
# services_file: services.yaml
`

func initCommand(host string, force bool) error {
	path := config.ConfigFileName

	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			path+" already exists",
			"Use --force to overwrite it.")
	}

	if host == "" {
		host = "docker-host"
	}

	content := fmt.Sprintf(configTemplate, host)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write "+path,
			"Check directory permissions.")
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit remote.host, then run 'dockhand check'.")
	return nil
}
