// Command miniredis-server runs the miniredis TCP listener.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"miniredis/internal/config"
	"miniredis/internal/logging"
	"miniredis/internal/metrics"
	"miniredis/server"
)

var (
	configPath     string
	addr           string
	maxConnections int
	pubsubBuffer   int
	logLevel       string
	logFile        string
	metricsAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "miniredis-server",
	Short: "Run the miniredis server",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file path")
	flags.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flags.IntVar(&maxConnections, "max-connections", 0, "max concurrent connections (overrides config, 0 = use config)")
	flags.IntVar(&pubsubBuffer, "pubsub-buffer", 0, "per-subscriber buffer size (overrides config, 0 = use config)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&logFile, "log-file", "", "log file path (empty = stdout)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "metrics HTTP listen address; enables metrics (overrides config, empty = use config)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(&cfg)

	log := logging.New(cfg.Logging)
	defer log.Sync()

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr)
		metricsServer.Start()
		log.Infof("metrics listening on %s", cfg.Metrics.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("listening on %s", srv.Addr().String())
	runErr := srv.Run(ctx)

	if metricsServer != nil {
		_ = metricsServer.Shutdown(context.Background())
	}

	if runErr != nil {
		return fmt.Errorf("server: %w", runErr)
	}
	log.Infof("shut down cleanly")
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if addr != "" {
		cfg.Addr = addr
	}
	if maxConnections != 0 {
		cfg.MaxConnections = maxConnections
	}
	if pubsubBuffer != 0 {
		cfg.PubSubBufferSize = pubsubBuffer
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.Filename = logFile
		cfg.Logging.Stdout = false
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
