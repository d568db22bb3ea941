package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pressbus/pressbus/pkg/config"
	"github.com/pressbus/pressbus/pkg/history"
	"github.com/pressbus/pressbus/pkg/log"
	"github.com/pressbus/pressbus/pkg/metrics"
	"github.com/pressbus/pressbus/pkg/registry"
	"github.com/pressbus/pressbus/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the news distribution server",
	Long: `Run the pressbus server: accept publisher and subscriber connections,
route published articles to matching subscriptions, and maintain the durable
article history.

Examples:
  # Serve with defaults (127.0.0.1:5555)
  pressbus serve

  # Serve from a config file, overriding the port
  pressbus serve --config pressbus.yaml --port 6000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "YAML configuration file")
	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().StringSlice("categories", nil, "category set")
	serveCmd.Flags().String("wildcard", "", "wildcard subscription keyword")
	serveCmd.Flags().String("history-file", "", "durable history file path")
	serveCmd.Flags().Int("max-history", 0, "maximum retained articles")
	serveCmd.Flags().String("metrics-addr", "", "metrics/health listen address (empty = disabled)")
	serveCmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", false, "emit JSON logs")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	set := cfg.CategorySet()
	store, err := history.New(history.Config{
		Path:         cfg.HistoryFile,
		Capacity:     cfg.MaxHistory,
		DefaultLimit: cfg.HistoryLimit,
	}, set)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	reg := registry.New(set)
	srv := server.New(cfg, reg, store)

	if err := srv.Start(); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		healthServer := metrics.NewHealthServer(Version)
		go func() {
			if err := healthServer.Start(cfg.MetricsAddr); err != nil {
				logger := log.WithComponent("metrics")
				logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	return srv.Stop()
}

func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if categories, _ := cmd.Flags().GetStringSlice("categories"); len(categories) > 0 {
		cfg.Categories = categories
	}
	if wildcard, _ := cmd.Flags().GetString("wildcard"); wildcard != "" {
		cfg.Wildcard = wildcard
	}
	if historyFile, _ := cmd.Flags().GetString("history-file"); historyFile != "" {
		cfg.HistoryFile = historyFile
	}
	if maxHistory, _ := cmd.Flags().GetInt("max-history"); maxHistory != 0 {
		cfg.MaxHistory = maxHistory
	}
	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logJSON, _ := cmd.Flags().GetBool("log-json"); logJSON {
		cfg.LogJSON = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
