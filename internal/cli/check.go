package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dockhand/internal/errors"
)

// checkCmd verifies the path from config to remote Docker host end to end
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity to the remote host",
	Long: `Run connectivity checks against the configured remote host.

Checks, in order:
  1. Config loads and validates
  2. SSH connection to the remote host
  3. Docker CLI access on the remote host
  4. Metrics endpoint responds

Examples:
  dockhand check
  dockhand check --config ~/homelab/dockhand.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkCommand()
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Println("✗ config")
		return err
	}
	fmt.Println("✓ config")

	app := buildApp(cfg)
	defer app.manager.Close()

	failed := 0

	if err := app.manager.TestConnection(); err != nil {
		fmt.Printf("✗ ssh (%s)\n", cfg.Remote.Host)
		fmt.Println(indent(err.Error()))
		failed++
	} else {
		fmt.Printf("✓ ssh (%s)\n", cfg.Remote.Host)

		// Docker access only makes sense once SSH works.
		if err := app.manager.TestDockerAccess(); err != nil {
			fmt.Println("✗ docker")
			fmt.Println(indent(err.Error()))
			failed++
		} else {
			fmt.Println("✓ docker")
		}
	}

	if err := app.metrics.TestConnection(); err != nil {
		fmt.Printf("✗ metrics (%s:%d)\n", cfg.Metrics.Host, cfg.Metrics.Port)
		fmt.Println(indent(err.Error()))
		failed++
	} else {
		fmt.Printf("✓ metrics (%s:%d)\n", cfg.Metrics.Host, cfg.Metrics.Port)
	}

	if failed > 0 {
		return errors.New(errors.ErrTransport,
			fmt.Sprintf("%d check(s) failed", failed),
			"Fix the failures above, then rerun 'dockhand check'.")
	}

	fmt.Println("\nAll checks passed.")
	return nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
