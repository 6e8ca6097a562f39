package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags available to all subcommands
var (
	configFlag string
	debugFlag  bool
)

// rootCmd is the base command all subcommands hang off of.
var rootCmd = &cobra.Command{
	Use:   "dockhand",
	Short: "Dashboard backend for a remote Docker host",
	Long: `Dockhand serves a JSON API over a Docker host reached via SSH.

It runs docker CLI commands on the remote host, enriches containers with
a managed-services table, and pulls system metrics from a Glances
endpoint on the same host. Point a dashboard frontend at it, or curl it.

Examples:
  dockhand serve
  dockhand serve --config ~/homelab/dockhand.yaml
  dockhand check`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugFlag {
			os.Setenv("DOCKHAND_DEBUG", "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file path (default: .dockhand.yaml, then ~/.config/dockhand/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// Config returns the --config flag value.
func Config() string {
	return configFlag
}

// Execute runs the root command and exits nonzero on error.
// Structured errors format their own suggestion text.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
