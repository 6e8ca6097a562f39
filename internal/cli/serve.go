package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dockhand/internal/api"
	"dockhand/internal/config"
	"dockhand/internal/docker"
	"dockhand/internal/logger"
	"dockhand/internal/metrics"
	"dockhand/internal/registry"
	"dockhand/internal/transport"
	"dockhand/pkg/sshutil"
)

// shutdownGrace bounds how long in-flight requests get on SIGINT/SIGTERM.
const shutdownGrace = 10 * time.Second

var (
	serveHostFlag string
	servePortFlag int
)

// serveCmd starts the dashboard API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP API server backing the dashboard.

The server connects to the remote Docker host over SSH lazily, on the
first request that needs it. Stop it with Ctrl+C; in-flight requests
get a grace period to finish.

Examples:
  dockhand serve
  dockhand serve --port 9090
  dockhand serve --config ~/homelab/dockhand.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHostFlag, "host", "", "listen address (overrides config)")
	serveCmd.Flags().IntVar(&servePortFlag, "port", 0, "listen port (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func serveCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveHostFlag != "" {
		cfg.Server.Host = serveHostFlag
	}
	if servePortFlag > 0 {
		cfg.Server.Port = servePortFlag
	}

	app := buildApp(cfg)
	defer app.manager.Close()

	log := logger.NewEnvLogger("[serve]")

	srv := api.NewServer(cfg.Server, api.NewRouter(app.handler, logger.NewEnvLogger("[api]")), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// app bundles the wired subsystems so serve and check share one
// construction path.
type app struct {
	manager  *transport.Manager
	registry *registry.Registry
	metrics  *metrics.Service
	handler  *api.Handler
}

func buildApp(cfg *config.Config) *app {
	manager := transport.NewManager(sshutil.Options{
		Host:    cfg.Remote.Host,
		Port:    cfg.Remote.Port,
		User:    cfg.Remote.User,
		KeyPath: cfg.Remote.KeyPath,
	}, cfg.Remote.ConnectTimeout, logger.NewEnvLogger("[transport]"))
	manager.SetDefaultTimeout(cfg.Remote.CommandTimeout)

	containers := docker.NewService(manager, logger.NewEnvLogger("[docker]"))
	reg := registry.New(cfg.Services)

	client := metrics.NewClient(cfg.Metrics.Host, cfg.Metrics.Port,
		cfg.Metrics.APIVersion, cfg.Metrics.Timeout, logger.NewEnvLogger("[metrics]"))
	metricsSvc := metrics.NewService(client, reg, metrics.Options{
		ProbeHost:     cfg.Remote.Host,
		MetricsTTL:    cfg.Cache.MetricsTTL,
		HealthTTL:     cfg.Cache.HealthTTL,
		HistoryWindow: cfg.Cache.HistoryWindow,
		ProbeTimeout:  cfg.Metrics.Timeout,
	}, logger.NewEnvLogger("[metrics]"))

	handler := api.NewHandler(containers, reg, metricsSvc, logger.NewEnvLogger("[api]"))

	return &app{manager: manager, registry: reg, metrics: metricsSvc, handler: handler}
}

// loadConfig loads the config the --config flag points at, or searches
// the standard locations and falls back to defaults plus env overrides.
func loadConfig() (*config.Config, error) {
	if path := Config(); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault()
}
